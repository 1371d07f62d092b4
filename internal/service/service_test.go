package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buildhub/community-system/internal/model"
	"github.com/buildhub/community-system/internal/points"
	"github.com/buildhub/community-system/internal/repository"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

type stubRepo struct {
	user    *model.User
	userErr error

	project    *model.Project
	projectErr error

	contribution    *model.Contribution
	contributionErr error

	createdContribution  *model.Contribution
	createContributionID uuid.UUID

	verifyResult *model.Contribution
	verifyErr    error
	verifyCalls  int

	rejectResult *model.Contribution
	rejectErr    error
	rejectCalls  int

	redemption    *model.Redemption
	reward        *model.Reward
	redemptionErr error

	fulfilled    *model.Redemption
	fulfilledErr error

	allTimeEntries  []model.LeaderboardEntry
	windowedEntries []model.LeaderboardEntry
	capturedCutoff  time.Time
	capturedLimit   int

	notifications []model.Notification
	notifyErr     error

	reevaluateCalls int
	reevaluateErr   error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) CreateProject(ctx context.Context, p *model.Project) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubRepo) GetProjectByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return s.project, s.projectErr
}

func (s *stubRepo) GetProjects(ctx context.Context, status *model.ProjectStatus, limit int) ([]model.Project, error) {
	return nil, nil
}

func (s *stubRepo) CreateContribution(ctx context.Context, c *model.Contribution) (uuid.UUID, error) {
	s.createdContribution = c
	if s.createContributionID == uuid.Nil {
		s.createContributionID = uuid.New()
	}
	return s.createContributionID, nil
}

func (s *stubRepo) GetContributionByID(ctx context.Context, id uuid.UUID) (*model.Contribution, error) {
	return s.contribution, s.contributionErr
}

func (s *stubRepo) GetContributionsByContributor(ctx context.Context, userID int64) ([]model.Contribution, error) {
	return nil, nil
}

func (s *stubRepo) GetContributionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Contribution, error) {
	return nil, nil
}

func (s *stubRepo) VerifyContribution(ctx context.Context, contributionID uuid.UUID, now time.Time) (*model.Contribution, error) {
	s.verifyCalls++
	return s.verifyResult, s.verifyErr
}

func (s *stubRepo) RejectContribution(ctx context.Context, contributionID uuid.UUID) (*model.Contribution, error) {
	s.rejectCalls++
	return s.rejectResult, s.rejectErr
}

func (s *stubRepo) ReevaluateAchievements(ctx context.Context, userID int64, now time.Time) error {
	s.reevaluateCalls++
	return s.reevaluateErr
}

func (s *stubRepo) GetUserAchievements(ctx context.Context, userID int64) ([]model.UnlockedAchievement, error) {
	return nil, nil
}

func (s *stubRepo) GetUserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	return model.UserStats{}, nil
}

func (s *stubRepo) CreateRedemption(ctx context.Context, userID int64, rewardID uuid.UUID, now time.Time) (*model.Redemption, *model.Reward, error) {
	return s.redemption, s.reward, s.redemptionErr
}

func (s *stubRepo) FulfillRedemption(ctx context.Context, redemptionID uuid.UUID, now time.Time) (*model.Redemption, error) {
	return s.fulfilled, s.fulfilledErr
}

func (s *stubRepo) GetRedemptionsByUser(ctx context.Context, userID int64) ([]model.Redemption, error) {
	return nil, nil
}

func (s *stubRepo) GetRewards(ctx context.Context) ([]model.Reward, error) {
	return nil, nil
}

func (s *stubRepo) GetAllTimeLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	s.capturedLimit = limit
	return s.allTimeEntries, nil
}

func (s *stubRepo) GetWindowedLeaderboard(ctx context.Context, cutoff time.Time, limit int) ([]model.LeaderboardEntry, error) {
	s.capturedCutoff = cutoff
	s.capturedLimit = limit
	return s.windowedEntries, nil
}

func (s *stubRepo) CreateNotification(ctx context.Context, n *model.Notification) error {
	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *stubRepo) GetNotificationsByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	return s.notifications, nil
}

func (s *stubRepo) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	return len(s.notifications), nil
}

func (s *stubRepo) MarkNotificationRead(ctx context.Context, userID int64, notificationID uuid.UUID) error {
	return nil
}

func (s *stubRepo) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	return 0, nil
}

func (s *stubRepo) GetPlatformStats(ctx context.Context) (*model.PlatformStats, error) {
	return &model.PlatformStats{}, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zap.NewNop(), points.DefaultValues())
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user", "correct")
	repo := &stubRepo{
		user: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}

	svc := newTestService(repo)

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSubmitContribution_SelfContribution(t *testing.T) {
	projectID := uuid.New()
	repo := &stubRepo{
		project: &model.Project{ID: projectID, OwnerID: 7, Title: "proj"},
	}
	svc := newTestService(repo)

	_, err := svc.SubmitContribution(context.Background(), 7, projectID,
		model.ContributionMergedChange, "https://github.com/a/b/pull/1")
	if !errors.Is(err, ErrSelfContribution) {
		t.Fatalf("expected ErrSelfContribution, got %v", err)
	}
	if repo.createdContribution != nil {
		t.Fatalf("contribution must not be created for own project")
	}
}

func TestSubmitContribution_InvalidType(t *testing.T) {
	repo := &stubRepo{
		project: &model.Project{ID: uuid.New(), OwnerID: 7},
	}
	svc := newTestService(repo)

	_, err := svc.SubmitContribution(context.Background(), 1, uuid.New(), "weird", "https://github.com/a/b/pull/1")
	if !errors.Is(err, ErrInvalidContributionType) {
		t.Fatalf("expected ErrInvalidContributionType, got %v", err)
	}
}

func TestSubmitContribution_FixesPointsFromTable(t *testing.T) {
	projectID := uuid.New()
	repo := &stubRepo{
		project: &model.Project{ID: projectID, OwnerID: 7, Title: "proj"},
	}
	svc := newTestService(repo)

	_, err := svc.SubmitContribution(context.Background(), 1, projectID,
		model.ContributionMergedChange, "https://github.com/a/b/pull/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.createdContribution == nil {
		t.Fatalf("contribution was not created")
	}
	if repo.createdContribution.PointsAwarded != 50 {
		t.Errorf("points awarded = %d, want 50", repo.createdContribution.PointsAwarded)
	}

	if len(repo.notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.notifications))
	}
	if repo.notifications[0].UserID != 7 {
		t.Errorf("notification sent to %d, want project owner 7", repo.notifications[0].UserID)
	}
	if repo.notifications[0].Type != model.NotificationContributionSubmitted {
		t.Errorf("notification type = %s", repo.notifications[0].Type)
	}
}

func TestSubmitContribution_NotificationFailureDoesNotFail(t *testing.T) {
	projectID := uuid.New()
	repo := &stubRepo{
		project:   &model.Project{ID: projectID, OwnerID: 7},
		notifyErr: errors.New("sink down"),
	}
	svc := newTestService(repo)

	_, err := svc.SubmitContribution(context.Background(), 1, projectID,
		model.ContributionResolvedIssue, "https://github.com/a/b/issues/1")
	if err != nil {
		t.Fatalf("submit must succeed when notification emission fails, got %v", err)
	}
}

func TestVerifyContribution_NotFound(t *testing.T) {
	repo := &stubRepo{
		contributionErr: repository.ErrContributionNotFound,
	}
	svc := newTestService(repo)

	err := svc.VerifyContribution(context.Background(), uuid.New(), 7)
	if !errors.Is(err, repository.ErrContributionNotFound) {
		t.Fatalf("expected ErrContributionNotFound, got %v", err)
	}
}

func TestVerifyContribution_Forbidden(t *testing.T) {
	contributionID := uuid.New()
	projectID := uuid.New()
	repo := &stubRepo{
		contribution: &model.Contribution{
			ID:        contributionID,
			ProjectID: projectID,
			Status:    model.ContributionStatusPending,
		},
		project: &model.Project{ID: projectID, OwnerID: 7},
	}
	svc := newTestService(repo)

	err := svc.VerifyContribution(context.Background(), contributionID, 99)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.verifyCalls != 0 {
		t.Fatalf("verify must not reach the repository for a non-owner")
	}
}

func TestVerifyContribution_AlreadyProcessed(t *testing.T) {
	contributionID := uuid.New()
	projectID := uuid.New()
	repo := &stubRepo{
		contribution: &model.Contribution{
			ID:        contributionID,
			ProjectID: projectID,
			Status:    model.ContributionStatusVerified,
		},
		project: &model.Project{ID: projectID, OwnerID: 7},
	}
	svc := newTestService(repo)

	err := svc.VerifyContribution(context.Background(), contributionID, 7)
	if !errors.Is(err, repository.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if repo.verifyCalls != 0 {
		t.Fatalf("processed contribution must not be verified again")
	}
}

func TestVerifyContribution_NotifiesContributor(t *testing.T) {
	contributionID := uuid.New()
	projectID := uuid.New()
	now := time.Now()
	repo := &stubRepo{
		contribution: &model.Contribution{
			ID:            contributionID,
			ContributorID: 3,
			ProjectID:     projectID,
			Status:        model.ContributionStatusPending,
			PointsAwarded: 50,
		},
		project: &model.Project{ID: projectID, OwnerID: 7, Title: "proj"},
		verifyResult: &model.Contribution{
			ID:            contributionID,
			ContributorID: 3,
			ProjectID:     projectID,
			Status:        model.ContributionStatusVerified,
			PointsAwarded: 50,
			VerifiedAt:    &now,
		},
	}
	svc := newTestService(repo)

	if err := svc.VerifyContribution(context.Background(), contributionID, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.verifyCalls != 1 {
		t.Fatalf("verify calls = %d, want 1", repo.verifyCalls)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.notifications))
	}
	if repo.notifications[0].UserID != 3 {
		t.Errorf("notification sent to %d, want contributor 3", repo.notifications[0].UserID)
	}
}

func TestVerifyContribution_NotificationFailureDoesNotFail(t *testing.T) {
	contributionID := uuid.New()
	projectID := uuid.New()
	repo := &stubRepo{
		contribution: &model.Contribution{
			ID:        contributionID,
			ProjectID: projectID,
			Status:    model.ContributionStatusPending,
		},
		project:      &model.Project{ID: projectID, OwnerID: 7},
		verifyResult: &model.Contribution{ID: contributionID, Status: model.ContributionStatusVerified},
		notifyErr:    errors.New("sink down"),
	}
	svc := newTestService(repo)

	if err := svc.VerifyContribution(context.Background(), contributionID, 7); err != nil {
		t.Fatalf("verify must succeed when notification emission fails, got %v", err)
	}
}

func TestRejectContribution_DoesNotTouchLedger(t *testing.T) {
	contributionID := uuid.New()
	projectID := uuid.New()
	repo := &stubRepo{
		contribution: &model.Contribution{
			ID:            contributionID,
			ContributorID: 3,
			ProjectID:     projectID,
			Status:        model.ContributionStatusPending,
		},
		project:      &model.Project{ID: projectID, OwnerID: 7, Title: "proj"},
		rejectResult: &model.Contribution{ID: contributionID, Status: model.ContributionStatusRejected},
	}
	svc := newTestService(repo)

	if err := svc.RejectContribution(context.Background(), contributionID, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.rejectCalls != 1 {
		t.Fatalf("reject calls = %d, want 1", repo.rejectCalls)
	}
	if repo.verifyCalls != 0 {
		t.Fatalf("reject must not credit the ledger")
	}
	if repo.reevaluateCalls != 0 {
		t.Fatalf("reject must not reevaluate achievements")
	}
}

func TestRedeemReward_InsufficientBalance(t *testing.T) {
	repo := &stubRepo{
		redemptionErr: repository.ErrInsufficientBalance,
	}
	svc := newTestService(repo)

	_, err := svc.RedeemReward(context.Background(), 1, uuid.New())
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(repo.notifications) != 0 {
		t.Fatalf("failed redemption must not emit a notification")
	}
}

func TestGetLeaderboard_WeekCutoff(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	_, err := svc.GetLeaderboard(context.Background(), 5, model.WindowWeek)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Now().Add(-7 * 24 * time.Hour)
	if diff := repo.capturedCutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", repo.capturedCutoff, want)
	}
	if repo.capturedLimit != 5 {
		t.Errorf("limit = %d, want 5", repo.capturedLimit)
	}
}

func TestGetLeaderboard_MonthCutoff(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	_, err := svc.GetLeaderboard(context.Background(), 5, model.WindowMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Now().Add(-30 * 24 * time.Hour)
	if diff := repo.capturedCutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", repo.capturedCutoff, want)
	}
}

func TestGetLeaderboard_InvalidWindow(t *testing.T) {
	svc := newTestService(&stubRepo{})

	_, err := svc.GetLeaderboard(context.Background(), 5, "year")
	if !errors.Is(err, ErrInvalidLeaderboardWindow) {
		t.Fatalf("expected ErrInvalidLeaderboardWindow, got %v", err)
	}
}

func TestGetLeaderboard_DefaultLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	if _, err := svc.GetLeaderboard(context.Background(), 0, model.WindowAll); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.capturedLimit != 10 {
		t.Errorf("default limit = %d, want 10", repo.capturedLimit)
	}
}

func TestGetUserEconomyState(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{
			ID:            1,
			PointBalance:  120,
			Tier:          model.TierContributor,
			CurrentStreak: 3,
			LongestStreak: 5,
		},
	}
	svc := newTestService(repo)

	st, err := svc.GetUserEconomyState(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.PointBalance != 120 || st.Tier != model.TierContributor || st.CurrentStreak != 3 || st.LongestStreak != 5 {
		t.Errorf("unexpected economy state: %+v", st)
	}
}

func TestCreateProject_ReevaluatesAchievements(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	_, err := svc.CreateProject(context.Background(), &model.Project{OwnerID: 7, Title: "proj"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.reevaluateCalls != 1 {
		t.Fatalf("reevaluate calls = %d, want 1", repo.reevaluateCalls)
	}
}

func TestCreateProject_ReevaluateFailureDoesNotFail(t *testing.T) {
	repo := &stubRepo{reevaluateErr: errors.New("db down")}
	svc := newTestService(repo)

	if _, err := svc.CreateProject(context.Background(), &model.Project{OwnerID: 7, Title: "proj"}); err != nil {
		t.Fatalf("project creation must not fail on achievement reevaluation, got %v", err)
	}
}
