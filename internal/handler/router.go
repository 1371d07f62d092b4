package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/buildhub/community-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса сообщества.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/projects", h.GetProjects)
		r.Get("/projects/{projectID}/contributions", h.GetProjectContributions)
		r.Get("/rewards", h.GetRewards)
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/stats", h.GetPlatformStats)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/economy", h.GetEconomy)
			r.Get("/user/stats", h.GetUserStats)
			r.Get("/user/achievements", h.GetMyAchievements)

			r.Post("/projects", h.CreateProject)

			r.Post("/contributions", h.SubmitContribution)
			r.Get("/contributions", h.GetMyContributions)
			r.Post("/contributions/{contributionID}/verify", h.VerifyContribution)
			r.Post("/contributions/{contributionID}/reject", h.RejectContribution)

			r.Post("/rewards/{rewardID}/redeem", h.RedeemReward)
			r.Get("/redemptions", h.GetRedemptions)
			r.Post("/redemptions/{redemptionID}/fulfill", h.FulfillRedemption)

			r.Get("/notifications", h.GetNotifications)
			r.Get("/notifications/unread", h.GetUnreadCount)
			r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)
			r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
