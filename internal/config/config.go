package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Storage   StorageConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Storage:   loadStorageConfig(),
		Log:       logCfg,
		RateLimit: rateLimit,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述补全接口相关配置。
type AIConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Region        string
	Timeout       time.Duration
	AssistantName string
	ReferenceDate string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// NewChatModel 使用配置创建一个模型实例。
// Retries are disabled: every user message gets exactly one upstream attempt.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("completion credentials missing: HF_TOKEN (or LLM_API_KEY) and LLM_MODEL are required")
	}

	timeout := c.Timeout
	retries := 0

	cfg := &ark.ChatModelConfig{
		BaseURL:    c.BaseURL,
		Region:     c.Region,
		APIKey:     c.APIKey,
		Model:      c.Model,
		Timeout:    &timeout,
		RetryTimes: &retries,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	timeoutSeconds := 60
	if override, err := parseOptionalIntEnv("LLM_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AIConfig{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS value %d: must be positive", *override)
		}
		timeoutSeconds = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("HF_TOKEN"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	}

	return AIConfig{
		APIKey:        apiKey,
		Model:         getEnvOrDefault("LLM_MODEL", "mistralai/Mistral-7B-Instruct-v0.2:featherless-ai"),
		BaseURL:       getEnvOrDefault("LLM_BASE_URL", "https://router.huggingface.co/v1"),
		Region:        getEnvOrDefault("LLM_REGION", "us-east-1"),
		Timeout:       time.Duration(timeoutSeconds) * time.Second,
		AssistantName: getEnvOrDefault("ASSISTANT_NAME", "SnailGPT"),
		ReferenceDate: getEnvOrDefault("REFERENCE_DATE", "Friday, January 30, 2026"),
	}, nil
}

// StorageConfig 描述会话文件与用户数据库的位置。
type StorageConfig struct {
	SessionsDir string
	UsersDB     string
}

func loadStorageConfig() StorageConfig {
	// Serverless hosts only allow writes under /tmp.
	usersDefault := "users.db"
	if _, ok := os.LookupEnv("VERCEL"); ok {
		usersDefault = filepath.Join("/tmp", "users.db")
	}

	return StorageConfig{
		SessionsDir: getEnvOrDefault("SESSIONS_DIR", filepath.Join("/tmp", "chat_sessions")),
		UsersDB:     getEnvOrDefault("USERS_DB", usersDefault),
	}
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level        string
	Format       string
	ReportCaller bool
}

func loadLogConfig() (LogConfig, error) {
	reportCaller, err := parseBoolEnv("LOG_REPORT_CALLER", false)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level:        strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format:       strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		ReportCaller: reportCaller,
	}, nil
}

// RateLimitConfig 描述聊天接口的限流参数，RPS 为 0 表示关闭。
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{RPS: 2, Burst: 5}

	rps, err := parseOptionalFloatEnv("RATE_LIMIT_RPS")
	if err != nil {
		return RateLimitConfig{}, err
	}
	if rps != nil {
		if *rps < 0 {
			return RateLimitConfig{}, fmt.Errorf("invalid RATE_LIMIT_RPS value %v: must not be negative", *rps)
		}
		cfg.RPS = *rps
	}

	burst, err := parseOptionalIntEnv("RATE_LIMIT_BURST")
	if err != nil {
		return RateLimitConfig{}, err
	}
	if burst != nil {
		if *burst < 1 {
			cfg.Burst = 1
		} else {
			cfg.Burst = *burst
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
