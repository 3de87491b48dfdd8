package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	accountModel "github.com/zhouzirui/snailgpt/backend/internal/model/account"
	accountService "github.com/zhouzirui/snailgpt/backend/internal/service/account"
	"github.com/zhouzirui/snailgpt/backend/pkg/utils"
)

const invalidPayload = "Invalid or missing JSON payload."

// Handler 账户服务的HTTP处理器
type Handler struct {
	accounts *accountService.Service
	logger   logrus.FieldLogger
}

// New 创建账户处理器
func New(accounts *accountService.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{accounts: accounts, logger: logger}
}

// RegisterRoutes 注册账户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/user/update", h.handleUpdate)
}

type profileResponse struct {
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	RecoveryCode string  `json:"recoveryCode"`
	AvatarURL    *string `json:"avatarUrl"`
}

func toProfile(user accountModel.User) profileResponse {
	return profileResponse{
		Email:        user.Email,
		Username:     user.Username,
		RecoveryCode: user.RecoveryCode,
		AvatarURL:    user.AvatarURL,
	}
}

// handleRegister 注册新账户
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, invalidPayload)
		return
	}

	user, err := h.accounts.Register(r.Context(), accountService.RegisterInput{
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		h.respondAccountError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"email":        user.Email,
		"username":     user.Username,
		"recoveryCode": user.RecoveryCode,
	})
}

// handleLogin 使用邮箱或用户名登录
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, invalidPayload)
		return
	}

	user, err := h.accounts.Login(r.Context(), payload.ID, payload.Password)
	if err != nil {
		h.respondAccountError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, toProfile(user))
}

// handleUpdate 修改用户名、密码或头像
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email        string          `json:"email"`
		NewUsername  string          `json:"newUsername"`
		NewPassword  string          `json:"newPassword"`
		RecoveryCode string          `json:"recoveryCode"`
		AvatarURL    json.RawMessage `json:"avatarUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, invalidPayload)
		return
	}

	input := accountService.UpdateInput{
		Email:        payload.Email,
		NewUsername:  payload.NewUsername,
		NewPassword:  payload.NewPassword,
		RecoveryCode: payload.RecoveryCode,
	}

	// A present avatarUrl key updates the avatar; null reverts to none.
	if len(payload.AvatarURL) > 0 {
		input.AvatarSet = true
		if !bytes.Equal(payload.AvatarURL, []byte("null")) {
			var avatar string
			if err := json.Unmarshal(payload.AvatarURL, &avatar); err != nil {
				utils.RespondError(w, http.StatusBadRequest, "avatarUrl must be a string or null.")
				return
			}
			input.AvatarURL = &avatar
		}
	}

	user, err := h.accounts.Update(r.Context(), input)
	if err != nil {
		h.respondAccountError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, toProfile(user))
}

func (h *Handler) respondAccountError(w http.ResponseWriter, err error) {
	var validation *accountService.ValidationError
	switch {
	case errors.As(err, &validation):
		utils.RespondError(w, http.StatusBadRequest, validation.Reason)
	case errors.Is(err, accountService.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, "email already registered use a different one")
	case errors.Is(err, accountService.ErrUsernameTaken):
		utils.RespondError(w, http.StatusConflict, "This display name is already taken. Please choose another.")
	case errors.Is(err, accountService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, "Invalid identifier or password.")
	case errors.Is(err, accountService.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, accountService.ErrInvalidRecoveryCode):
		utils.RespondError(w, http.StatusForbidden, "Invalid Recovery Code. Password change rejected.")
	default:
		h.logger.WithError(err).Error("account operation failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
