package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
	"github.com/couchcryptid/weather-assistant/internal/session"
)

const sid = "session-abc"

type forecastCall struct {
	loc   string
	when  domain.TimeRef
	units domain.Units
}

type stubWeather struct {
	forecast      domain.ForecastResult
	alerts        []domain.Alert
	forecastCalls []forecastCall
	alertCalls    []string
}

func (s *stubWeather) GetForecast(_ context.Context, loc string, when domain.TimeRef, units domain.Units) domain.ForecastResult {
	s.forecastCalls = append(s.forecastCalls, forecastCall{loc, when, units})
	fc := s.forecast
	fc.Location = loc
	return fc
}

func (s *stubWeather) GetAlerts(_ context.Context, loc string) []domain.Alert {
	s.alertCalls = append(s.alertCalls, loc)
	return s.alerts
}

func intp(v int) *int { return &v }

func sunny(period string, temp int) domain.ForecastResult {
	return domain.ForecastResult{Period: period, ShortForecast: "Sunny", Temperature: intp(temp), Unit: "F", SourceUnit: "F"}
}

func newTestPolicy(w *stubWeather) (*Policy, *session.Store) {
	store := session.NewStore(session.Config{}, clockwork.NewFakeClock(), nil)
	return New(store, w, observability.DiscardLogger()), store
}

func pendingState(t *testing.T, store *session.Store) domain.PendingState {
	t.Helper()
	p, _ := session.Value[domain.PendingState](store, sid, KeyPending)
	return p
}

func TestRespond_ForecastWithFullEntities(t *testing.T) {
	w := &stubWeather{forecast: sunny("Tomorrow", 85)}
	p, store := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentForecast, 0.9, domain.Entities{
		Location: "Austin, TX",
		DateTime: domain.TimeTomorrow,
		Units:    domain.UnitsImperial,
	})

	assert.Contains(t, reply, "Tomorrow in Austin, TX")
	assert.Contains(t, reply, "85")
	want := strings.TrimSpace("Tomorrow in Austin, TX: Sunny. Around 85 degrees F." + pick(sid, keySuffix, forecastSuffixes))
	assert.Equal(t, want, reply)

	require.Len(t, w.forecastCalls, 1)
	assert.Equal(t, forecastCall{"Austin, TX", domain.TimeTomorrow, domain.UnitsImperial}, w.forecastCalls[0])

	assert.Equal(t, "Austin, TX", store.Get(sid, KeyLastLocation, nil))
	last, ok := session.Value[domain.Entities](store, sid, KeyLastEntities)
	require.True(t, ok)
	assert.Equal(t, domain.Entities{Location: "Austin, TX", DateTime: domain.TimeTomorrow, Units: domain.UnitsImperial}, last)

	turns := store.Turns(sid)
	require.Len(t, turns, 1)
	assert.Equal(t, domain.IntentForecast, turns[0].Intent)
	assert.Equal(t, reply, turns[0].Reply)
}

func TestRespond_ReusesRememberedLocation(t *testing.T) {
	w := &stubWeather{forecast: domain.ForecastResult{Period: "Tonight", ShortForecast: "Mostly clear", Temperature: intp(60), Unit: "F"}}
	p, store := newTestPolicy(w)
	store.Set(sid, KeyLastLocation, "Austin, TX")

	reply := p.Respond(context.Background(), sid, domain.IntentForecast, 0.9, domain.Entities{DateTime: domain.TimeTonight})

	assert.True(t, strings.HasPrefix(reply, "Tonight in Austin, TX: Mostly clear. Around 60 degrees F."), reply)
	require.Len(t, w.forecastCalls, 1)
	assert.Equal(t, "Austin, TX", w.forecastCalls[0].loc)
	assert.Equal(t, domain.TimeTonight, w.forecastCalls[0].when)
}

func TestRespond_AlertsBullets(t *testing.T) {
	w := &stubWeather{alerts: []domain.Alert{
		{Event: "Tornado Warning", Headline: "Tornado Warning until 5 PM"},
		{Event: "Flood Watch", Headline: "Flood Watch through tonight"},
	}}
	p, store := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentAlerts, 0.9, domain.Entities{Location: "Austin, TX"})

	lines := strings.Split(reply, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Active alerts for Austin, TX:", lines[0])
	assert.Equal(t, "- Tornado Warning: Tornado Warning until 5 PM", lines[1])
	assert.Equal(t, "- Flood Watch: Flood Watch through tonight", lines[2])
	assert.Equal(t, []string{"Austin, TX"}, w.alertCalls)
	assert.Equal(t, "Austin, TX", store.Get(sid, KeyLastLocation, nil))
}

func TestRespond_NoAlerts(t *testing.T) {
	p, _ := newTestPolicy(&stubWeather{})

	reply := p.Respond(context.Background(), sid, domain.IntentAlerts, 0.9, domain.Entities{Location: "Dallas, TX"})
	assert.Equal(t, "No active alerts for Dallas, TX.", reply)
}

func TestRespond_LowConfidenceWithoutContextClarifies(t *testing.T) {
	w := &stubWeather{}
	p, store := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentCurrentWeather, 0.3, domain.Entities{})

	assert.Equal(t, ClarifyReply, reply)
	assert.Equal(t, domain.AwaitingLocationFor(domain.IntentCurrentWeather, domain.TimeToday), pendingState(t, store))
	assert.Nil(t, store.Get(sid, KeyLastEntities, nil))
	assert.Empty(t, w.forecastCalls)
	require.Len(t, store.Turns(sid), 1)
}

func TestRespond_MissingLocationAsksAndParks(t *testing.T) {
	p, store := newTestPolicy(&stubWeather{})

	reply := p.Respond(context.Background(), sid, domain.IntentForecast, 0.9, domain.Entities{DateTime: domain.TimeTomorrow})

	assert.Equal(t, NeedLocationReply, reply)
	assert.Equal(t, domain.AwaitingLocationFor(domain.IntentForecast, domain.TimeTomorrow), pendingState(t, store))
	assert.Nil(t, store.Get(sid, KeyLastEntities, nil))
}

func TestRespond_ResumesParkedForecast(t *testing.T) {
	w := &stubWeather{forecast: sunny("Tomorrow", 85)}
	p, store := newTestPolicy(w)
	ctx := context.Background()

	p.Respond(ctx, sid, domain.IntentForecast, 0.9, domain.Entities{DateTime: domain.TimeTomorrow})
	reply := p.Respond(ctx, sid, domain.IntentFallback, 0.3, domain.Entities{Location: "Austin, TX"})

	assert.True(t, strings.HasPrefix(reply, "Tomorrow in Austin, TX: Sunny."), reply)
	require.Len(t, w.forecastCalls, 1)
	assert.Equal(t, domain.TimeTomorrow, w.forecastCalls[0].when)
	assert.True(t, pendingState(t, store).Idle())

	turns := store.Turns(sid)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.IntentForecast, turns[1].Intent, "snapshot records the resumed intent")
}

func TestRespond_ResumesParkedAlerts(t *testing.T) {
	w := &stubWeather{}
	p, store := newTestPolicy(w)
	ctx := context.Background()

	assert.Equal(t, NeedLocationReply, p.Respond(ctx, sid, domain.IntentAlerts, 0.9, domain.Entities{}))
	reply := p.Respond(ctx, sid, domain.IntentFallback, 0.2, domain.Entities{Location: "Dallas, TX"})

	assert.Equal(t, "No active alerts for Dallas, TX.", reply)
	assert.Equal(t, []string{"Dallas, TX"}, w.alertCalls)
	assert.True(t, pendingState(t, store).Idle())
}

func TestRespond_FollowUpAtLowConfidence(t *testing.T) {
	w := &stubWeather{forecast: sunny("Today", 80)}
	p, _ := newTestPolicy(w)
	ctx := context.Background()

	first := p.Respond(ctx, sid, domain.IntentForecast, 0.9, domain.Entities{Location: "Austin, TX"})
	assert.True(t, strings.HasPrefix(first, "Right now in Austin, TX:"), first)

	second := p.Respond(ctx, sid, domain.IntentForecast, 0.4, domain.Entities{DateTime: domain.TimeTonight})
	assert.True(t, strings.HasPrefix(second, "Tonight in Austin, TX:"), second)
	require.Len(t, w.forecastCalls, 2)
	assert.Equal(t, domain.TimeTonight, w.forecastCalls[1].when)
}

func TestRespond_CurrentWeatherForcesToday(t *testing.T) {
	w := &stubWeather{forecast: sunny("This Afternoon", 91)}
	p, _ := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentCurrentWeather, 0.8, domain.Entities{Location: "austin"})

	require.Len(t, w.forecastCalls, 1)
	assert.Equal(t, forecastCall{"Austin, TX", domain.TimeToday, domain.UnitsImperial}, w.forecastCalls[0])
	assert.True(t, strings.HasPrefix(reply, "Right now in Austin, TX: Sunny. Around 91 degrees F."), reply)
}

func TestRespond_UnitsPassedThrough(t *testing.T) {
	w := &stubWeather{forecast: domain.ForecastResult{ShortForecast: "Cloudy", Temperature: intp(25), Unit: "C"}}
	p, _ := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentForecast, 0.9,
		domain.Entities{Location: "Austin, TX", Units: domain.UnitsMetric})

	assert.Equal(t, domain.UnitsMetric, w.forecastCalls[0].units)
	assert.Contains(t, reply, "Around 25 degrees C.")
}

func TestRespond_ForecastFailure(t *testing.T) {
	w := &stubWeather{forecast: domain.ForecastResult{Error: "HTTP error: boom"}}
	p, _ := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentForecast, 0.9, domain.Entities{Location: "Austin, TX"})
	assert.Equal(t, "Sorry, I couldn't fetch the forecast for Austin, TX. HTTP error: boom", reply)
}

func TestRespond_KeepsCityStateOverBareCity(t *testing.T) {
	w := &stubWeather{forecast: sunny("Today", 70)}
	p, store := newTestPolicy(w)
	store.Set(sid, KeyLastLocation, "Austin, TX")

	p.Respond(context.Background(), sid, domain.IntentForecast, 0.9, domain.Entities{Location: "Springfield"})

	assert.Equal(t, "Springfield", w.forecastCalls[0].loc)
	assert.Equal(t, "Austin, TX", store.Get(sid, KeyLastLocation, nil))
}

func TestRespond_LowConfidenceAlertsWithoutLocation(t *testing.T) {
	w := &stubWeather{}
	p, store := newTestPolicy(w)

	reply := p.Respond(context.Background(), sid, domain.IntentAlerts, 0.2, domain.Entities{})

	assert.Equal(t, ClarifyReply, reply)
	assert.True(t, pendingState(t, store).Idle())
	assert.Empty(t, w.alertCalls)
}

func TestRespond_GreetHelpFallback(t *testing.T) {
	p, store := newTestPolicy(&stubWeather{})
	ctx := context.Background()

	greet := p.Respond(ctx, sid, domain.IntentGreet, 0.99, domain.Entities{})
	assert.Equal(t, pick(sid, keyGreet, greetReplies), greet)
	assert.Equal(t, greet, p.Respond(ctx, sid, domain.IntentGreet, 0.99, domain.Entities{}), "same session, same phrasing")

	assert.Equal(t, pick(sid, keyHelp, helpReplies), p.Respond(ctx, sid, domain.IntentHelp, 0.9, domain.Entities{}))
	assert.Equal(t, pick(sid, keyFallback, fallbackReplies), p.Respond(ctx, sid, "", 0.9, domain.Entities{}))

	assert.Nil(t, store.Get(sid, KeyLastEntities, nil))
	assert.Nil(t, store.Get(sid, KeyLastLocation, nil))
	assert.Len(t, store.Turns(sid), 4)
}

func TestRespond_BackfillsUnitsFromMemory(t *testing.T) {
	w := &stubWeather{forecast: sunny("Today", 20)}
	p, _ := newTestPolicy(w)
	ctx := context.Background()

	p.Respond(ctx, sid, domain.IntentForecast, 0.9, domain.Entities{Location: "Austin, TX", Units: domain.UnitsMetric})
	p.Respond(ctx, sid, domain.IntentCurrentWeather, 0.9, domain.Entities{})

	require.Len(t, w.forecastCalls, 2)
	assert.Equal(t, forecastCall{"Austin, TX", domain.TimeToday, domain.UnitsMetric}, w.forecastCalls[1])
}
