package domain

import (
	"encoding/json"
	"strings"
)

// Intent is the coarse user goal produced by the intent classifier.
type Intent string

const (
	IntentCurrentWeather Intent = "get_current_weather"
	IntentForecast       Intent = "get_forecast"
	IntentAlerts         Intent = "get_alerts"
	IntentGreet          Intent = "greet"
	IntentHelp           Intent = "help"
	IntentFallback       Intent = "fallback"
)

// IsWeather reports whether the intent needs a forecast lookup.
func (i Intent) IsWeather() bool {
	return i == IntentCurrentWeather || i == IntentForecast
}

// Pendable reports whether the intent can be parked while waiting for a location.
func (i Intent) Pendable() bool {
	return i.IsWeather() || i == IntentAlerts
}

// TimeRef is a normalized time-reference token. The empty value means unspecified.
type TimeRef string

const (
	TimeToday           TimeRef = "today"
	TimeTodayMorning    TimeRef = "today_morning"
	TimeTodayAfternoon  TimeRef = "today_afternoon"
	TimeTodayEvening    TimeRef = "today_evening"
	TimeTonight         TimeRef = "tonight"
	TimeTomorrow        TimeRef = "tomorrow"
	TimeTomorrowMorning TimeRef = "tomorrow_morning"
	TimeTomorrowNight   TimeRef = "tomorrow_night"
	TimeWeekend         TimeRef = "weekend"
	TimeMonday          TimeRef = "monday"
	TimeTuesday         TimeRef = "tuesday"
	TimeWednesday       TimeRef = "wednesday"
	TimeThursday        TimeRef = "thursday"
	TimeFriday          TimeRef = "friday"
	TimeSaturday        TimeRef = "saturday"
	TimeSunday          TimeRef = "sunday"
)

// Weekdays lists the weekday tokens in calendar order starting Monday.
var Weekdays = []TimeRef{
	TimeMonday, TimeTuesday, TimeWednesday, TimeThursday, TimeFriday, TimeSaturday, TimeSunday,
}

// IsWeekday reports whether t names a day of the week.
func (t TimeRef) IsWeekday() bool {
	for _, d := range Weekdays {
		if t == d {
			return true
		}
	}
	return false
}

// Normalize lowercases and trims a token. Empty stays empty.
func (t TimeRef) Normalize() TimeRef {
	return TimeRef(strings.ToLower(strings.TrimSpace(string(t))))
}

// Units is the requested unit system.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Symbol resolves a unit system to the temperature symbol used by NWS.
// Anything that is not metric resolves to Fahrenheit.
func (u Units) Symbol() string {
	switch strings.ToLower(strings.TrimSpace(string(u))) {
	case "metric", "c", "celsius":
		return "C"
	default:
		return "F"
	}
}

// Entities holds the structured values extracted from one utterance.
// Empty fields mean "not present".
type Entities struct {
	Location string  `json:"location"`
	DateTime TimeRef `json:"datetime"`
	Units    Units   `json:"units"`
}

// IsZero reports whether no entity is set.
func (e Entities) IsZero() bool {
	return e.Location == "" && e.DateTime == "" && e.Units == ""
}

// MarshalJSON renders absent entities as null.
func (e Entities) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]*string{
		"location": nullable(e.Location),
		"datetime": nullable(string(e.DateTime)),
		"units":    nullable(string(e.Units)),
	})
}

// UnmarshalJSON accepts nulls for absent entities.
func (e *Entities) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entities{
		Location: deref(raw["location"]),
		DateTime: TimeRef(deref(raw["datetime"])),
		Units:    Units(deref(raw["units"])),
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
