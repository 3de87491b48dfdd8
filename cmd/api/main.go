package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/snailgpt/backend/internal/config"
	"github.com/zhouzirui/snailgpt/backend/internal/handler"
	"github.com/zhouzirui/snailgpt/backend/internal/logging"
	"github.com/zhouzirui/snailgpt/backend/internal/middleware"
	"github.com/zhouzirui/snailgpt/backend/internal/model/persona"
	"github.com/zhouzirui/snailgpt/backend/internal/service/account"
	"github.com/zhouzirui/snailgpt/backend/internal/service/ai"
	"github.com/zhouzirui/snailgpt/backend/internal/service/chat"
	"github.com/zhouzirui/snailgpt/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.WithError(envErr).Debug("no .env file loaded, using system environment only")
	}

	// 模型不可用时仍然启动，每次请求返回带内错误
	var chatModel model.BaseChatModel
	if m, err := cfg.AI.NewChatModel(ctx); err != nil {
		logger.WithError(err).Warn("completion model unavailable, replies will carry an error notice")
	} else {
		chatModel = m
		logger.WithFields(logrus.Fields{
			"model":    cfg.AI.Model,
			"base_url": cfg.AI.BaseURL,
			"timeout":  cfg.AI.Timeout,
		}).Info("completion model initialized")
	}

	client := ai.NewClient(chatModel, logger)
	assembler := ai.NewAssembler(persona.Default(cfg.AI.AssistantName, cfg.AI.ReferenceDate))

	store, err := session.NewFileStore(cfg.Storage.SessionsDir, client, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to prepare session storage")
	}
	chatService := chat.NewService(client, assembler, store, logger)

	accountService, err := account.Open(cfg.Storage.UsersDB, logger)
	if err != nil {
		logger.WithError(err).Warn("account database unavailable, /api routes disabled")
		accountService = nil
	} else {
		defer accountService.Close()
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := handler.NewRouter(chatService, accountService, limiter, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger logrus.FieldLogger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.WithField("addr", addr).Info("SnailGPT backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
