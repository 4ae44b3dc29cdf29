package weather

import (
	"strings"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// SelectPeriod picks the forecast period that answers when. Tokens that match
// nothing fall back to the first period; ok is false only for no periods.
func SelectPeriod(periods []domain.Period, when domain.TimeRef) (domain.Period, bool) {
	i := selectIndex(periods, when)
	if i < 0 {
		return domain.Period{}, false
	}
	return periods[i], true
}

func selectIndex(periods []domain.Period, when domain.TimeRef) int {
	if len(periods) == 0 {
		return -1
	}
	w := when.Normalize()
	if w == "" {
		w = domain.TimeToday
	}

	names := make([]string, len(periods))
	for i, p := range periods {
		names[i] = strings.ToLower(strings.TrimSpace(p.Name))
	}
	first := func(from int, pred func(string) bool) int {
		for i := from; i < len(names); i++ {
			if pred(names[i]) {
				return i
			}
		}
		return -1
	}
	isNight := func(n string) bool { return strings.Contains(n, "night") }
	leadingToday := strings.HasPrefix(names[0], "today")

	switch {
	case w == domain.TimeToday:
		return 0

	case w == domain.TimeTonight:
		if i := first(0, func(n string) bool { return strings.Contains(n, "tonight") }); i >= 0 {
			return i
		}

	case w == domain.TimeTodayMorning, w == domain.TimeTodayAfternoon, w == domain.TimeTodayEvening:
		targets := map[domain.TimeRef][]string{
			domain.TimeTodayMorning:   {"morning"},
			domain.TimeTodayAfternoon: {"afternoon"},
			domain.TimeTodayEvening:   {"evening", "tonight"},
		}[w]
		for i := 0; i < len(names) && i < 4; i++ {
			for _, t := range targets {
				if strings.Contains(names[i], t) {
					return i
				}
			}
		}
		if w == domain.TimeTodayEvening {
			if i := first(0, func(n string) bool { return strings.Contains(n, "tonight") }); i >= 0 {
				return i
			}
		}
		return 0

	case w == domain.TimeWeekend:
		if i := first(0, func(n string) bool {
			return strings.Contains(n, "saturday") || strings.Contains(n, "sunday")
		}); i >= 0 {
			return i
		}

	case w.IsWeekday():
		day := string(w)
		if i := first(0, func(n string) bool { return strings.Contains(n, day) && !isNight(n) }); i >= 0 {
			return i
		}

	case w == domain.TimeTomorrow:
		if leadingToday {
			if i := first(1, func(n string) bool { return !isNight(n) }); i >= 0 {
				return i
			}
		}
		if i := first(0, func(n string) bool { return !isNight(n) && n != "today" }); i >= 0 {
			return i
		}

	case w == domain.TimeTomorrowMorning, w == domain.TimeTomorrowNight:
		start := 0
		if leadingToday {
			start = 1
		}
		pred := func(n string) bool { return !isNight(n) && n != "today" }
		if w == domain.TimeTomorrowNight {
			pred = func(n string) bool { return isNight(n) || strings.Contains(n, "evening") }
		}
		if i := first(start, pred); i >= 0 {
			return i
		}
	}
	return 0
}
