package points

import "github.com/buildhub/community-system/internal/model"

// Achievement описывает запись каталога достижений: правило разблокировки
// и бонусные баллы. Бонус носит витринный характер и на баланс не начисляется.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Points      int64
	Rule        func(stats model.UserStats, weekStreak bool) bool
}

// Catalog содержит упорядоченный набор определений достижений.
type Catalog []Achievement

// DefaultCatalog возвращает стандартный каталог достижений сообщества.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			ID:          "first_contribution",
			Name:        "First Steps",
			Description: "Submit your first contribution",
			Icon:        "rocket",
			Points:      10,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.SubmittedContributions >= 1
			},
		},
		{
			ID:          "five_contributions",
			Name:        "Getting Started",
			Description: "Submit 5 contributions",
			Icon:        "star",
			Points:      25,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.SubmittedContributions >= 5
			},
		},
		{
			ID:          "ten_contributions",
			Name:        "Contributor",
			Description: "Submit 10 contributions",
			Icon:        "trophy",
			Points:      50,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.SubmittedContributions >= 10
			},
		},
		{
			ID:          "first_project",
			Name:        "Project Owner",
			Description: "Submit your first project",
			Icon:        "folder",
			Points:      20,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.OwnedProjects >= 1
			},
		},
		{
			ID:          "first_verified",
			Name:        "Verified!",
			Description: "Get your first contribution verified",
			Icon:        "check",
			Points:      15,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.VerifiedContributions >= 1
			},
		},
		{
			ID:          "week_streak",
			Name:        "On Fire",
			Description: "Maintain a 7-day streak",
			Icon:        "flame",
			Points:      50,
			Rule: func(_ model.UserStats, weekStreak bool) bool {
				return weekStreak
			},
		},
		{
			ID:          "helper",
			Name:        "Community Helper",
			Description: "Contribute to 3 different projects",
			Icon:        "heart",
			Points:      30,
			Rule: func(s model.UserStats, _ bool) bool {
				return s.DistinctProjects >= 3
			},
		},
	}
}

// Satisfied возвращает идентификаторы достижений, правила которых выполнены
// для переданной активности. Дедупликация уже разблокированных достижений
// выполняется хранилищем при вставке, а не здесь.
func (c Catalog) Satisfied(stats model.UserStats, weekStreak bool) []string {
	var ids []string
	for _, a := range c {
		if a.Rule(stats, weekStreak) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
