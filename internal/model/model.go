// Package model содержит доменные сущности платформы сообщества разработчиков.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Tier описывает уровень репутации пользователя, вычисляемый по балансу баллов.
type Tier string

const (
	TierBase        Tier = "base"
	TierContributor Tier = "contributor"
	TierCore        Tier = "core"
	TierArchitect   Tier = "architect"
)

// User представляет зарегистрированного участника сообщества и его экономическое состояние.
type User struct {
	ID                   int64
	Login                string
	PasswordHash         []byte
	PointBalance         int64
	Tier                 Tier
	CurrentStreak        int
	LongestStreak        int
	LastContributionDate *time.Time
	CreatedAt            time.Time
}

// ProjectStatus описывает состояние проекта.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Project описывает проект, принимающий вклады от участников сообщества.
type Project struct {
	ID          uuid.UUID
	OwnerID     int64
	Title       string
	Description string
	RepoURL     string
	HelpWanted  string
	Tags        []string
	Status      ProjectStatus
	CreatedAt   time.Time
}

// ContributionType описывает тип заявленной работы.
type ContributionType string

const (
	ContributionMergedChange     ContributionType = "merged_change"
	ContributionResolvedIssue    ContributionType = "resolved_issue"
	ContributionAcceptedFeedback ContributionType = "accepted_feedback"
)

// ContributionStatus описывает статус проверки вклада.
type ContributionStatus string

const (
	ContributionStatusPending  ContributionStatus = "pending"
	ContributionStatusVerified ContributionStatus = "verified"
	ContributionStatusRejected ContributionStatus = "rejected"
)

// Contribution описывает заявку участника о выполненной работе над чужим проектом.
// PointsAwarded фиксируется в момент подачи и далее не меняется.
type Contribution struct {
	ID            uuid.UUID
	ContributorID int64
	ProjectID     uuid.UUID
	Type          ContributionType
	EvidenceURL   string
	PointsAwarded int64
	Status        ContributionStatus
	CreatedAt     time.Time
	VerifiedAt    *time.Time
}

// Reward описывает награду, доступную для обмена на баллы.
type Reward struct {
	ID          uuid.UUID
	Name        string
	Description string
	PointsCost  int64
	Available   bool
}

// RedemptionStatus описывает статус выдачи награды.
type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "pending"
	RedemptionStatusFulfilled RedemptionStatus = "fulfilled"
)

// Redemption описывает факт списания баллов в обмен на награду.
type Redemption struct {
	ID          uuid.UUID
	UserID      int64
	RewardID    uuid.UUID
	PointsCost  int64
	Status      RedemptionStatus
	RedeemedAt  time.Time
	FulfilledAt *time.Time
}

// NotificationType описывает тип уведомления.
type NotificationType string

const (
	NotificationContributionSubmitted NotificationType = "contribution_submitted"
	NotificationContributionVerified  NotificationType = "contribution_verified"
	NotificationContributionRejected  NotificationType = "contribution_rejected"
	NotificationRewardRedeemed        NotificationType = "reward_redeemed"
	NotificationRewardFulfilled       NotificationType = "reward_fulfilled"
)

// Notification описывает уведомление пользователя.
type Notification struct {
	ID                    uuid.UUID
	UserID                int64
	Type                  NotificationType
	Title                 string
	Message               string
	RelatedProjectID      *uuid.UUID
	RelatedContributionID *uuid.UUID
	IsRead                bool
	CreatedAt             time.Time
}

// UnlockedAchievement описывает факт разблокировки достижения пользователем.
// Для пары (UserID, AchievementID) существует не более одной записи.
type UnlockedAchievement struct {
	UserID        int64
	AchievementID string
	UnlockedAt    time.Time
}

// EconomyState содержит снимок экономического состояния пользователя.
type EconomyState struct {
	PointBalance  int64 `json:"balance"`
	Tier          Tier  `json:"tier"`
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
}

// LeaderboardWindow определяет период построения таблицы лидеров.
type LeaderboardWindow string

const (
	WindowAll   LeaderboardWindow = "all"
	WindowWeek  LeaderboardWindow = "week"
	WindowMonth LeaderboardWindow = "month"
)

// LeaderboardEntry описывает позицию пользователя в таблице лидеров.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Points int64  `json:"points"`
	Tier   Tier   `json:"tier"`
}

// UserStats содержит агрегированную активность пользователя.
// Используется движком достижений и страницей профиля.
type UserStats struct {
	SubmittedContributions int
	VerifiedContributions  int
	DistinctProjects       int
	OwnedProjects          int
}

// PlatformStats содержит сводные показатели платформы.
type PlatformStats struct {
	TotalContributions    int   `json:"total_contributions"`
	VerifiedContributions int   `json:"verified_contributions"`
	PendingContributions  int   `json:"pending_contributions"`
	TotalProjects         int   `json:"total_projects"`
	ActiveProjects        int   `json:"active_projects"`
	TotalUsers            int   `json:"total_users"`
	TotalPointsAwarded    int64 `json:"total_points_awarded"`
}
