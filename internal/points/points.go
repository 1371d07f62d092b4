// Package points содержит чистые правила экономики баллов: стоимость вкладов,
// пороги уровней и каталог достижений. Все каталоги неизменяемы и передаются
// в компоненты через внедрение зависимостей, что позволяет подменять их в тестах.
package points

import "github.com/buildhub/community-system/internal/model"

// Values задаёт стоимость вклада каждого типа в баллах.
// Значение фиксируется на вкладе в момент подачи, поэтому изменение таблицы
// не влияет на уже созданные записи.
type Values map[model.ContributionType]int64

// DefaultValues возвращает стандартную таблицу стоимости вкладов.
func DefaultValues() Values {
	return Values{
		model.ContributionMergedChange:     50,
		model.ContributionResolvedIssue:    30,
		model.ContributionAcceptedFeedback: 20,
	}
}

// Thresholds задаёт минимальный баланс для каждого уровня выше базового.
type Thresholds struct {
	Contributor int64
	Core        int64
	Architect   int64
}

// DefaultThresholds возвращает стандартные пороги уровней.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Contributor: 100,
		Core:        500,
		Architect:   1000,
	}
}

// TierFor вычисляет уровень пользователя по балансу баллов.
// Функция чистая и монотонная: больший баланс никогда не даёт меньший уровень.
func TierFor(balance int64, t Thresholds) model.Tier {
	switch {
	case balance >= t.Architect:
		return model.TierArchitect
	case balance >= t.Core:
		return model.TierCore
	case balance >= t.Contributor:
		return model.TierContributor
	default:
		return model.TierBase
	}
}

// TierRank возвращает порядковый номер уровня для сравнения уровней между собой.
func TierRank(t model.Tier) int {
	switch t {
	case model.TierArchitect:
		return 3
	case model.TierCore:
		return 2
	case model.TierContributor:
		return 1
	default:
		return 0
	}
}
