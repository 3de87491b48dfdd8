package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/snailgpt/backend/internal/handler/account"
	"github.com/zhouzirui/snailgpt/backend/internal/handler/chat"
	"github.com/zhouzirui/snailgpt/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/snailgpt/backend/internal/middleware"
	accountService "github.com/zhouzirui/snailgpt/backend/internal/service/account"
	chatService "github.com/zhouzirui/snailgpt/backend/internal/service/chat"
	"github.com/zhouzirui/snailgpt/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
// accountSvc and limiter are optional.
func NewRouter(chatSvc *chatService.Service, accountSvc *accountService.Service, limiter *middlewarePkg.RateLimiter, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middlewarePkg.Recoverer(logger))
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondStatus(w, "ok")
	})

	// Session management
	chat.New(chatSvc, logger).RegisterRoutes(r)

	// Streaming chat endpoints are rate limited per client
	r.Group(func(g chi.Router) {
		if limiter != nil {
			g.Use(limiter.Middleware)
		}
		stream.New(chatSvc, logger).RegisterRoutes(g)
	})

	if accountSvc != nil {
		r.Route("/api", func(api chi.Router) {
			account.New(accountSvc, logger).RegisterRoutes(api)
		})
	}

	return r
}
