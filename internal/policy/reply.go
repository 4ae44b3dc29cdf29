package policy

import (
	"crypto/md5"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// Fixed replies.
const (
	NeedLocationReply = "What city and state? (e.g., Austin, TX)"
	ClarifyReply      = "Do you want current weather, a forecast, or alerts?"
)

// Variant keys fed to pick.
const (
	keyGreet      = "greet"
	keyHelp       = "help"
	keyFallback   = "fallback"
	keySuffix     = "wx_suffix"
	keyAlertsTail = "alerts_tail"
)

var (
	greetReplies = []string{
		"Hi! Ask me about current weather, a forecast, or alerts. Example: 'forecast for tomorrow in Austin, TX'",
		"Hello! I can check weather now, forecasts, and alerts. Try: 'weather now in Austin, TX'",
		"Hey there! I can give you current conditions, a forecast, or alerts. For example: 'any alerts for Dallas, TX?'",
	}
	helpReplies = []string{
		"You can ask for current weather, forecasts (today/tonight/tomorrow/weekday), or alerts. Include a city like 'San Marcos, TX'.",
		"Try things like: 'weather now in Austin, TX', 'and tonight?', or 'any weather alerts for Dallas, TX?'",
	}
	fallbackReplies = []string{
		"I can help with current weather, forecasts (today/tonight/tomorrow/weekday), and weather alerts. Try: 'weather now in Austin, TX'",
		"Ask me for current conditions, a forecast (like 'tomorrow in Dallas, TX'), or alerts.",
	}
	forecastSuffixes = []string{
		"",
		" You can ask for alerts, too.",
		" Want the weekend outlook as well?",
		" Need it in Celsius or Fahrenheit?",
	}
	alertsTails = []string{
		"",
		"\nStay safe. Ask for a forecast if you need details.",
	}
)

var timeLabels = map[domain.TimeRef]string{
	domain.TimeToday:           "Today",
	domain.TimeTodayMorning:    "This morning",
	domain.TimeTodayAfternoon:  "This afternoon",
	domain.TimeTodayEvening:    "This evening",
	domain.TimeTonight:         "Tonight",
	domain.TimeTomorrow:        "Tomorrow",
	domain.TimeTomorrowMorning: "Tomorrow morning",
	domain.TimeTomorrowNight:   "Tomorrow night",
	domain.TimeWeekend:         "This weekend",
}

// pick selects one option from the MD5 of "sessionID|key" read as a big
// integer, so a session always sees the same phrasing for a key.
func pick(sessionID, key string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	sum := md5.Sum([]byte(sessionID + "|" + key))
	n := new(big.Int).SetBytes(sum[:])
	idx := n.Mod(n, big.NewInt(int64(len(options)))).Int64()
	return options[idx]
}

// timeLabel names the requested time for a reply. Requests without an
// explicit time read as current conditions.
func timeLabel(when domain.TimeRef, periodName string, explicit bool) string {
	if !explicit {
		return "Right now"
	}
	w := when.Normalize()
	if label, ok := timeLabels[w]; ok {
		return label
	}
	if w != "" {
		return title(strings.ReplaceAll(string(w), "_", " "))
	}
	if p := strings.TrimSpace(periodName); p != "" {
		return p
	}
	return "Today"
}

// formatForecast renders "{label} in {loc}: {summary} {detail}".
func formatForecast(loc string, when domain.TimeRef, fc domain.ForecastResult, explicit bool) string {
	label := timeLabel(when, fc.Period, explicit)

	summary := strings.TrimSpace(fc.ShortForecast)
	if summary == "" {
		summary = "Forecast unavailable"
	}
	if l := strings.ToLower(strings.TrimRight(label, ":")); l != "" && strings.HasPrefix(strings.ToLower(summary), l) {
		if trimmed := strings.TrimLeft(summary[len(label):], " :,-"); trimmed != "" {
			summary = trimmed
		}
	}
	summary = punctuate(capitalize(summary))

	if fc.Temperature != nil {
		unit := strings.ToUpper(fc.Unit)
		if unit == "" {
			unit = "F"
		}
		summary += " " + punctuate(fmt.Sprintf("Around %d degrees %s", *fc.Temperature, unit))
	}
	return fmt.Sprintf("%s in %s: %s", label, loc, summary)
}

// formatAlerts renders a header line and one bullet per alert.
func formatAlerts(loc string, alerts []domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Active alerts for %s:", loc)
	for _, a := range alerts {
		event := a.Event
		if event == "" {
			event = "Alert"
		}
		fmt.Fprintf(&b, "\n- %s: %s", event, a.Headline)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func punctuate(s string) string {
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}

func title(s string) string {
	return cases.Title(language.AmericanEnglish).String(strings.TrimSpace(s))
}
