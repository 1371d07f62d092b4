// Package service реализует бизнес-логику платформы сообщества разработчиков.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buildhub/community-system/internal/model"
	"github.com/buildhub/community-system/internal/points"
	"github.com/buildhub/community-system/internal/repository"
)

// ErrSelfContribution возвращается при попытке заявить вклад в собственный проект.
var (
	ErrSelfContribution = errors.New("cannot submit contribution to own project")
	// ErrForbidden возвращается, если действие доступно только владельцу проекта.
	ErrForbidden = errors.New("only the project owner can process contributions")
	// ErrInvalidContributionType возвращается при неизвестном типе вклада.
	ErrInvalidContributionType = errors.New("invalid contribution type")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidLeaderboardWindow возвращается при неизвестном периоде таблицы лидеров.
	ErrInvalidLeaderboardWindow = errors.New("invalid leaderboard window")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CreateProject(ctx context.Context, p *model.Project) (uuid.UUID, error)
	GetProjectByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	GetProjects(ctx context.Context, status *model.ProjectStatus, limit int) ([]model.Project, error)
	CreateContribution(ctx context.Context, c *model.Contribution) (uuid.UUID, error)
	GetContributionByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error)
	GetContributionsByContributor(ctx context.Context, userID int64) ([]model.Contribution, error)
	GetContributionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Contribution, error)
	VerifyContribution(ctx context.Context, contributionID uuid.UUID, now time.Time) (*model.Contribution, error)
	RejectContribution(ctx context.Context, contributionID uuid.UUID) (*model.Contribution, error)
	ReevaluateAchievements(ctx context.Context, userID int64, now time.Time) error
	GetUserAchievements(ctx context.Context, userID int64) ([]model.UnlockedAchievement, error)
	GetUserStats(ctx context.Context, userID int64) (model.UserStats, error)
	CreateRedemption(ctx context.Context, userID int64, rewardID uuid.UUID, now time.Time) (*model.Redemption, *model.Reward, error)
	FulfillRedemption(ctx context.Context, redemptionID uuid.UUID, now time.Time) (*model.Redemption, error)
	GetRedemptionsByUser(ctx context.Context, userID int64) ([]model.Redemption, error)
	GetRewards(ctx context.Context) ([]model.Reward, error)
	GetAllTimeLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	GetWindowedLeaderboard(ctx context.Context, cutoff time.Time, limit int) ([]model.LeaderboardEntry, error)
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotificationsByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, userID int64, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error)
	GetPlatformStats(ctx context.Context) (*model.PlatformStats, error)
}

// Service содержит бизнес-логику платформы сообщества.
type Service struct {
	repo   Repository
	logger *zap.Logger
	values points.Values
}

// NewService создаёт новый сервис с указанным репозиторием и таблицей стоимости вкладов.
func NewService(repo Repository, logger *zap.Logger, values points.Values) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		values: values,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateProject создаёт новый проект и пересчитывает достижения владельца.
func (s *Service) CreateProject(ctx context.Context, p *model.Project) (uuid.UUID, error) {
	id, err := s.repo.CreateProject(ctx, p)
	if err != nil {
		return uuid.Nil, err
	}

	// Пересчёт достижений (first_project) не должен ронять создание проекта.
	if err := s.repo.ReevaluateAchievements(ctx, p.OwnerID, time.Now()); err != nil {
		s.logger.Error("reevaluate achievements after project create",
			zap.Error(err), zap.Int64("userID", p.OwnerID))
	}

	return id, nil
}

// GetProjects возвращает список проектов.
func (s *Service) GetProjects(ctx context.Context, status *model.ProjectStatus, limit int) ([]model.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.GetProjects(ctx, status, limit)
}

// SubmitContribution создаёт заявку о вкладе в статусе pending и уведомляет
// владельца проекта. Стоимость в баллах фиксируется по таблице типов в момент
// подачи.
func (s *Service) SubmitContribution(ctx context.Context, contributorID int64, projectID uuid.UUID, ctype model.ContributionType, evidenceURL string) (uuid.UUID, error) {
	pointsAwarded, ok := s.values[ctype]
	if !ok {
		return uuid.Nil, ErrInvalidContributionType
	}

	project, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}

	if project.OwnerID == contributorID {
		return uuid.Nil, ErrSelfContribution
	}

	id, err := s.repo.CreateContribution(ctx, &model.Contribution{
		ContributorID: contributorID,
		ProjectID:     projectID,
		Type:          ctype,
		EvidenceURL:   evidenceURL,
		PointsAwarded: pointsAwarded,
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.notify(ctx, &model.Notification{
		UserID:                project.OwnerID,
		Type:                  model.NotificationContributionSubmitted,
		Title:                 "New Contribution",
		Message:               fmt.Sprintf("Someone submitted a contribution to your project %q", project.Title),
		RelatedProjectID:      &projectID,
		RelatedContributionID: &id,
	})

	return id, nil
}

// VerifyContribution подтверждает вклад от имени владельца проекта. Начисление
// баллов, пересчёт уровня, серия и достижения применяются атомарно в хранилище;
// уведомление отправляется уже после фиксации изменений.
func (s *Service) VerifyContribution(ctx context.Context, contributionID uuid.UUID, actingUserID int64) error {
	c, project, err := s.loadForDecision(ctx, contributionID, actingUserID)
	if err != nil {
		return err
	}

	verified, err := s.repo.VerifyContribution(ctx, contributionID, time.Now())
	if err != nil {
		return err
	}

	s.notify(ctx, &model.Notification{
		UserID:                c.ContributorID,
		Type:                  model.NotificationContributionVerified,
		Title:                 "Contribution Verified!",
		Message:               fmt.Sprintf("Your contribution was verified! You earned %d points.", verified.PointsAwarded),
		RelatedProjectID:      &project.ID,
		RelatedContributionID: &contributionID,
	})

	return nil
}

// RejectContribution отклоняет вклад от имени владельца проекта. Баланс, серия
// и достижения участника не меняются.
func (s *Service) RejectContribution(ctx context.Context, contributionID uuid.UUID, actingUserID int64) error {
	c, project, err := s.loadForDecision(ctx, contributionID, actingUserID)
	if err != nil {
		return err
	}

	if _, err := s.repo.RejectContribution(ctx, contributionID); err != nil {
		return err
	}

	s.notify(ctx, &model.Notification{
		UserID:                c.ContributorID,
		Type:                  model.NotificationContributionRejected,
		Title:                 "Contribution Not Accepted",
		Message:               fmt.Sprintf("Your contribution to %q was not accepted.", project.Title),
		RelatedProjectID:      &project.ID,
		RelatedContributionID: &contributionID,
	})

	return nil
}

// loadForDecision выполняет общие проверки verify/reject: вклад существует,
// решение принимает владелец проекта, вклад ещё не обработан. Статус проверяется
// здесь только для быстрого ответа; атомарная защита от двойной обработки
// выполняется в хранилище.
func (s *Service) loadForDecision(ctx context.Context, contributionID uuid.UUID, actingUserID int64) (*model.Contribution, *model.Project, error) {
	c, err := s.repo.GetContributionByID(ctx, contributionID)
	if err != nil {
		return nil, nil, err
	}

	project, err := s.repo.GetProjectByID(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	if project.OwnerID != actingUserID {
		return nil, nil, ErrForbidden
	}

	if c.Status != model.ContributionStatusPending {
		return nil, nil, repository.ErrAlreadyProcessed
	}

	return c, project, nil
}

// GetMyContributions возвращает вклады пользователя.
func (s *Service) GetMyContributions(ctx context.Context, userID int64) ([]model.Contribution, error) {
	return s.repo.GetContributionsByContributor(ctx, userID)
}

// GetProjectContributions возвращает вклады в указанный проект.
func (s *Service) GetProjectContributions(ctx context.Context, projectID uuid.UUID) ([]model.Contribution, error) {
	if _, err := s.repo.GetProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.GetContributionsByProject(ctx, projectID)
}

// RedeemReward списывает стоимость награды с баланса пользователя и создаёт
// запись о выдаче. Достаточность баланса проверяется атомарно в хранилище.
func (s *Service) RedeemReward(ctx context.Context, userID int64, rewardID uuid.UUID) (*model.Redemption, error) {
	redemption, reward, err := s.repo.CreateRedemption(ctx, userID, rewardID, time.Now())
	if err != nil {
		return nil, err
	}

	s.notify(ctx, &model.Notification{
		UserID:  userID,
		Type:    model.NotificationRewardRedeemed,
		Title:   "Reward Redeemed!",
		Message: fmt.Sprintf("You redeemed %q for %d points. We'll fulfill it soon!", reward.Name, reward.PointsCost),
	})

	return redemption, nil
}

// FulfillRedemption помечает выдачу награды выполненной и уведомляет пользователя.
func (s *Service) FulfillRedemption(ctx context.Context, redemptionID uuid.UUID) error {
	red, err := s.repo.FulfillRedemption(ctx, redemptionID, time.Now())
	if err != nil {
		return err
	}

	s.notify(ctx, &model.Notification{
		UserID:  red.UserID,
		Type:    model.NotificationRewardFulfilled,
		Title:   "Reward Fulfilled!",
		Message: "Your reward has been fulfilled!",
	})

	return nil
}

// GetRedemptionsByUser возвращает историю обмена баллов пользователя.
func (s *Service) GetRedemptionsByUser(ctx context.Context, userID int64) ([]model.Redemption, error) {
	return s.repo.GetRedemptionsByUser(ctx, userID)
}

// GetRewards возвращает доступные награды.
func (s *Service) GetRewards(ctx context.Context) ([]model.Reward, error) {
	return s.repo.GetRewards(ctx)
}

// GetLeaderboard строит таблицу лидеров за указанный период. Период all
// ранжирует по текущему балансу; week и month — по баллам за вклады,
// подтверждённые внутри окна, независимо от потраченных баллов.
func (s *Service) GetLeaderboard(ctx context.Context, limit int, window model.LeaderboardWindow) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	switch window {
	case model.WindowAll, "":
		return s.repo.GetAllTimeLeaderboard(ctx, limit)
	case model.WindowWeek:
		return s.repo.GetWindowedLeaderboard(ctx, time.Now().Add(-7*24*time.Hour), limit)
	case model.WindowMonth:
		return s.repo.GetWindowedLeaderboard(ctx, time.Now().Add(-30*24*time.Hour), limit)
	default:
		return nil, ErrInvalidLeaderboardWindow
	}
}

// GetUserEconomyState возвращает снимок экономического состояния пользователя.
func (s *Service) GetUserEconomyState(ctx context.Context, userID int64) (*model.EconomyState, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.EconomyState{
		PointBalance:  u.PointBalance,
		Tier:          u.Tier,
		CurrentStreak: u.CurrentStreak,
		LongestStreak: u.LongestStreak,
	}, nil
}

// GetUserStats возвращает агрегированную активность пользователя.
func (s *Service) GetUserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	return s.repo.GetUserStats(ctx, userID)
}

// GetUserAchievements возвращает разблокированные достижения пользователя.
func (s *Service) GetUserAchievements(ctx context.Context, userID int64) ([]model.UnlockedAchievement, error) {
	return s.repo.GetUserAchievements(ctx, userID)
}

// GetNotifications возвращает уведомления пользователя.
func (s *Service) GetNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.GetNotificationsByUser(ctx, userID, unreadOnly, limit)
}

// CountUnreadNotifications возвращает число непрочитанных уведомлений пользователя.
func (s *Service) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, userID int64, notificationID uuid.UUID) error {
	return s.repo.MarkNotificationRead(ctx, userID, notificationID)
}

// MarkAllNotificationsRead помечает все уведомления пользователя прочитанными.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// GetPlatformStats возвращает сводные показатели платформы.
func (s *Service) GetPlatformStats(ctx context.Context) (*model.PlatformStats, error) {
	return s.repo.GetPlatformStats(ctx)
}

// notify сохраняет уведомление по принципу best-effort: ошибка записывается в
// лог и не влияет на результат уже зафиксированной операции.
func (s *Service) notify(ctx context.Context, n *model.Notification) {
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error("emit notification",
			zap.Error(err),
			zap.Int64("userID", n.UserID),
			zap.String("type", string(n.Type)),
		)
	}
}
