// Package streak реализует учёт серий ежедневной активности участников.
// Все даты сравниваются с точностью до календарного дня в UTC.
package streak

import "time"

// State содержит состояние серии пользователя.
type State struct {
	Current  int
	Longest  int
	LastDate *time.Time
}

// Day усекает момент времени до начала календарного дня в UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Advance возвращает новое состояние серии после вклада, сделанного today.
// Повторный вклад в тот же день серию не увеличивает; вклад на следующий день
// продлевает серию; разрыв больше одного дня сбрасывает её до единицы.
func Advance(s State, today time.Time) State {
	today = Day(today)

	next := State{Longest: s.Longest}

	switch {
	case s.LastDate != nil && Day(*s.LastDate).Equal(today):
		next.Current = s.Current
		if next.Current == 0 {
			next.Current = 1
		}
	case s.LastDate != nil && Day(*s.LastDate).Equal(today.AddDate(0, 0, -1)):
		next.Current = s.Current + 1
	default:
		next.Current = 1
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.LastDate = &today

	return next
}

// HasConsecutiveRun сообщает, содержат ли переданные моменты времени n подряд
// идущих календарных дней. Серия ищется по всей истории, а не только по
// последним датам.
func HasConsecutiveRun(times []time.Time, n int) bool {
	if n <= 0 {
		return true
	}
	if len(times) < n {
		return false
	}

	days := make(map[time.Time]struct{}, len(times))
	for _, t := range times {
		days[Day(t)] = struct{}{}
	}

	for d := range days {
		// Считаем только от начала серии, чтобы не пересчитывать середины.
		if _, ok := days[d.AddDate(0, 0, -1)]; ok {
			continue
		}
		run := 1
		for {
			if _, ok := days[d.AddDate(0, 0, run)]; !ok {
				break
			}
			run++
			if run >= n {
				return true
			}
		}
	}

	return false
}
