// Package handler содержит HTTP-обработчики API сервиса сообщества.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buildhub/community-system/internal/middleware"
	"github.com/buildhub/community-system/internal/model"
	"github.com/buildhub/community-system/internal/repository"
	"github.com/buildhub/community-system/internal/service"
	"github.com/buildhub/community-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateProject(ctx context.Context, p *model.Project) (uuid.UUID, error)
	GetProjects(ctx context.Context, status *model.ProjectStatus, limit int) ([]model.Project, error)
	SubmitContribution(ctx context.Context, contributorID int64, projectID uuid.UUID, ctype model.ContributionType, evidenceURL string) (uuid.UUID, error)
	VerifyContribution(ctx context.Context, contributionID uuid.UUID, actingUserID int64) error
	RejectContribution(ctx context.Context, contributionID uuid.UUID, actingUserID int64) error
	GetMyContributions(ctx context.Context, userID int64) ([]model.Contribution, error)
	GetProjectContributions(ctx context.Context, projectID uuid.UUID) ([]model.Contribution, error)
	RedeemReward(ctx context.Context, userID int64, rewardID uuid.UUID) (*model.Redemption, error)
	FulfillRedemption(ctx context.Context, redemptionID uuid.UUID) error
	GetRedemptionsByUser(ctx context.Context, userID int64) ([]model.Redemption, error)
	GetRewards(ctx context.Context) ([]model.Reward, error)
	GetLeaderboard(ctx context.Context, limit int, window model.LeaderboardWindow) ([]model.LeaderboardEntry, error)
	GetUserEconomyState(ctx context.Context, userID int64) (*model.EconomyState, error)
	GetUserStats(ctx context.Context, userID int64) (model.UserStats, error)
	GetUserAchievements(ctx context.Context, userID int64) ([]model.UnlockedAchievement, error)
	GetNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, userID int64, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error)
	GetPlatformStats(ctx context.Context) (*model.PlatformStats, error)
}

// Handler реализует HTTP-обработчики API сервиса сообщества.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// GetEconomy возвращает экономическое состояние текущего пользователя.
func (h *Handler) GetEconomy(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	state, err := h.service.GetUserEconomyState(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get economy error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, state)
}

type userStatsResponse struct {
	SubmittedContributions int `json:"submitted_contributions"`
	VerifiedContributions  int `json:"verified_contributions"`
	DistinctProjects       int `json:"distinct_projects"`
	OwnedProjects          int `json:"owned_projects"`
}

// GetUserStats возвращает агрегированную активность текущего пользователя.
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user stats error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, userStatsResponse{
		SubmittedContributions: stats.SubmittedContributions,
		VerifiedContributions:  stats.VerifiedContributions,
		DistinctProjects:       stats.DistinctProjects,
		OwnedProjects:          stats.OwnedProjects,
	})
}

type achievementResponse struct {
	AchievementID string `json:"achievement_id"`
	UnlockedAt    string `json:"unlocked_at"`
}

// GetMyAchievements возвращает разблокированные достижения текущего пользователя.
func (h *Handler) GetMyAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	achievements, err := h.service.GetUserAchievements(r.Context(), userID)
	if err != nil {
		h.logger.Error("get achievements error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]achievementResponse, 0, len(achievements))
	for _, a := range achievements {
		resp = append(resp, achievementResponse{
			AchievementID: a.AchievementID,
			UnlockedAt:    a.UnlockedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type projectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	RepoURL     string   `json:"repo_url"`
	HelpWanted  string   `json:"help_wanted"`
	Tags        []string `json:"tags"`
}

// CreateProject создаёт новый проект текущего пользователя.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidRepoURL(req.RepoURL) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.CreateProject(r.Context(), &model.Project{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		RepoURL:     req.RepoURL,
		HelpWanted:  req.HelpWanted,
		Tags:        req.Tags,
	})
	if err != nil {
		h.logger.Error("create project error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id.String()})
}

type projectResponse struct {
	ID          string   `json:"id"`
	OwnerID     int64    `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	RepoURL     string   `json:"repo_url"`
	HelpWanted  string   `json:"help_wanted"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// GetProjects возвращает список проектов.
func (h *Handler) GetProjects(w http.ResponseWriter, r *http.Request) {
	var status *model.ProjectStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.ProjectStatus(s)
		status = &st
	}

	projects, err := h.service.GetProjects(r.Context(), status, parseLimit(r, 50))
	if err != nil {
		h.logger.Error("get projects error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectResponse{
			ID:          p.ID.String(),
			OwnerID:     p.OwnerID,
			Title:       p.Title,
			Description: p.Description,
			RepoURL:     p.RepoURL,
			HelpWanted:  p.HelpWanted,
			Tags:        p.Tags,
			Status:      string(p.Status),
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type contributionRequest struct {
	ProjectID   string `json:"project_id"`
	Type        string `json:"type"`
	EvidenceURL string `json:"evidence_url"`
}

// SubmitContribution принимает заявку о вкладе от текущего пользователя.
func (h *Handler) SubmitContribution(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEvidenceURL(req.EvidenceURL) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.SubmitContribution(r.Context(), userID, projectID,
		model.ContributionType(req.Type), req.EvidenceURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidContributionType):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProjectNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrSelfContribution):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("submit contribution error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id.String()})
}

type contributionResponse struct {
	ID            string `json:"id"`
	ContributorID int64  `json:"contributor_id"`
	ProjectID     string `json:"project_id"`
	Type          string `json:"type"`
	EvidenceURL   string `json:"evidence_url"`
	PointsAwarded int64  `json:"points_awarded"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	VerifiedAt    string `json:"verified_at,omitempty"`
}

func toContributionResponse(c model.Contribution) contributionResponse {
	resp := contributionResponse{
		ID:            c.ID.String(),
		ContributorID: c.ContributorID,
		ProjectID:     c.ProjectID.String(),
		Type:          string(c.Type),
		EvidenceURL:   c.EvidenceURL,
		PointsAwarded: c.PointsAwarded,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
	if c.VerifiedAt != nil {
		resp.VerifiedAt = c.VerifiedAt.Format(time.RFC3339)
	}
	return resp
}

// GetMyContributions возвращает вклады текущего пользователя.
func (h *Handler) GetMyContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	contributions, err := h.service.GetMyContributions(r.Context(), userID)
	if err != nil {
		h.logger.Error("get contributions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]contributionResponse, 0, len(contributions))
	for _, c := range contributions {
		resp = append(resp, toContributionResponse(c))
	}

	h.writeJSON(w, resp)
}

// GetProjectContributions возвращает вклады в указанный проект.
func (h *Handler) GetProjectContributions(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	contributions, err := h.service.GetProjectContributions(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get project contributions error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]contributionResponse, 0, len(contributions))
	for _, c := range contributions {
		resp = append(resp, toContributionResponse(c))
	}

	h.writeJSON(w, resp)
}

// VerifyContribution подтверждает вклад от имени владельца проекта.
func (h *Handler) VerifyContribution(w http.ResponseWriter, r *http.Request) {
	h.decideContribution(w, r, h.service.VerifyContribution)
}

// RejectContribution отклоняет вклад от имени владельца проекта.
func (h *Handler) RejectContribution(w http.ResponseWriter, r *http.Request) {
	h.decideContribution(w, r, h.service.RejectContribution)
}

func (h *Handler) decideContribution(w http.ResponseWriter, r *http.Request, decide func(context.Context, uuid.UUID, int64) error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	contributionID, err := uuid.Parse(chi.URLParam(r, "contributionID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := decide(r.Context(), contributionID, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrContributionNotFound), errors.Is(err, repository.ErrProjectNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrAlreadyProcessed):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("decide contribution error", zap.Error(err),
				zap.Int64("userID", userID), zap.String("contribution", contributionID.String()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type rewardResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointsCost  int64  `json:"points_cost"`
}

// GetRewards возвращает доступные награды.
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.GetRewards(r.Context())
	if err != nil {
		h.logger.Error("get rewards error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		resp = append(resp, rewardResponse{
			ID:          rw.ID.String(),
			Name:        rw.Name,
			Description: rw.Description,
			PointsCost:  rw.PointsCost,
		})
	}

	h.writeJSON(w, resp)
}

// RedeemReward списывает стоимость награды с баланса текущего пользователя.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	rewardID, err := uuid.Parse(chi.URLParam(r, "rewardID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	redemption, err := h.service.RedeemReward(r.Context(), userID, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRewardNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrRewardUnavailable):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrInsufficientBalance):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("redeem reward error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": redemption.ID.String()})
}

type redemptionResponse struct {
	ID          string `json:"id"`
	RewardID    string `json:"reward_id"`
	PointsCost  int64  `json:"points_cost"`
	Status      string `json:"status"`
	RedeemedAt  string `json:"redeemed_at"`
	FulfilledAt string `json:"fulfilled_at,omitempty"`
}

// GetRedemptions возвращает историю обмена баллов текущего пользователя.
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	redemptions, err := h.service.GetRedemptionsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get redemptions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]redemptionResponse, 0, len(redemptions))
	for _, red := range redemptions {
		item := redemptionResponse{
			ID:         red.ID.String(),
			RewardID:   red.RewardID.String(),
			PointsCost: red.PointsCost,
			Status:     string(red.Status),
			RedeemedAt: red.RedeemedAt.Format(time.RFC3339),
		}
		if red.FulfilledAt != nil {
			item.FulfilledAt = red.FulfilledAt.Format(time.RFC3339)
		}
		resp = append(resp, item)
	}

	h.writeJSON(w, resp)
}

// FulfillRedemption помечает выдачу награды выполненной.
func (h *Handler) FulfillRedemption(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	redemptionID, err := uuid.Parse(chi.URLParam(r, "redemptionID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.FulfillRedemption(r.Context(), redemptionID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRedemptionNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrAlreadyProcessed):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("fulfill redemption error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetLeaderboard возвращает таблицу лидеров за указанный период.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	window := model.LeaderboardWindow(r.URL.Query().Get("window"))

	entries, err := h.service.GetLeaderboard(r.Context(), parseLimit(r, 10), window)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLeaderboardWindow) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("get leaderboard error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, entries)
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// GetNotifications возвращает уведомления текущего пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.service.GetNotifications(r.Context(), userID, unreadOnly, parseLimit(r, 50))
	if err != nil {
		h.logger.Error("get notifications error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:        n.ID.String(),
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

// GetUnreadCount возвращает число непрочитанных уведомлений текущего пользователя.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	count, err := h.service.CountUnreadNotifications(r.Context(), userID)
	if err != nil {
		h.logger.Error("count unread error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]int{"count": count})
}

// MarkNotificationRead помечает уведомление текущего пользователя прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), userID, notificationID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotificationNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotificationOwnedByAnother):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("mark notification read error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// MarkAllNotificationsRead помечает все уведомления текущего пользователя прочитанными.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	count, err := h.service.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		h.logger.Error("mark all read error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]int{"count": count})
}

// GetPlatformStats возвращает сводные показатели платформы.
func (h *Handler) GetPlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetPlatformStats(r.Context())
	if err != nil {
		h.logger.Error("get platform stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
