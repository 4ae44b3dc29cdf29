package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrNoForecastURL is returned when point metadata does not reference a
// forecast document.
var ErrNoForecastURL = errors.New("forecast URL not available")

// Period is one named NWS forecast period.
type Period struct {
	Number           int       `json:"number"`
	Name             string    `json:"name"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	IsDaytime        bool      `json:"isDaytime"`
	Temperature      *int      `json:"temperature"`
	TemperatureUnit  string    `json:"temperatureUnit"`
	ShortForecast    string    `json:"shortForecast"`
	DetailedForecast string    `json:"detailedForecast"`
}

// ForecastResult is the period selected for a (location, time reference, unit)
// request. A non-empty Error marks a failed lookup; the other fields are then
// unset except Location.
type ForecastResult struct {
	Location      string    `json:"location"`
	Period        string    `json:"period,omitempty"`
	ShortForecast string    `json:"shortForecast,omitempty"`
	Temperature   *int      `json:"temperature,omitempty"`
	Unit          string    `json:"unit,omitempty"`
	SourceUnit    string    `json:"sourceUnit,omitempty"`
	StartTime     time.Time `json:"startTime,omitzero"`
	EndTime       time.Time `json:"endTime,omitzero"`
	CacheKey      string    `json:"cacheKey,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Failed reports whether the result carries an error marker.
func (r ForecastResult) Failed() bool {
	return r.Error != ""
}

// Alert is the user-facing projection of an active NWS alert.
type Alert struct {
	Event    string `json:"event"`
	Headline string `json:"headline"`
}

// ConvertTemperature converts an integer temperature between "F" and "C"
// with rounding half away from zero. Unknown units and same-unit requests
// return the input unchanged.
func ConvertTemperature(temp int, sourceUnit, targetUnit string) int {
	src := strings.ToUpper(strings.TrimSpace(sourceUnit))
	dst := strings.ToUpper(strings.TrimSpace(targetUnit))
	switch {
	case src == dst:
		return temp
	case src == "F" && dst == "C":
		return int(math.Round(float64(temp-32) * 5 / 9))
	case src == "C" && dst == "F":
		return int(math.Round(float64(temp)*9/5 + 32))
	default:
		return temp
	}
}
