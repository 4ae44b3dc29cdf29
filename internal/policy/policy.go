// Package policy turns a classified intent and extracted entities into a
// reply. It fills missing entities from session memory, parks incomplete
// weather requests until a location arrives, and records every turn.
package policy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/geocode"
	"github.com/couchcryptid/weather-assistant/internal/session"
)

// LowConfidence is the classifier confidence below which a request is
// clarified instead of answered.
const LowConfidence = 0.55

// Session keys owned by the policy.
const (
	KeyLastLocation = "last_location"
	KeyLastEntities = "last_entities"
	KeyPending      = "pending"
)

// Forecaster answers weather questions. Failures come back as values.
type Forecaster interface {
	GetForecast(ctx context.Context, loc string, when domain.TimeRef, units domain.Units) domain.ForecastResult
	GetAlerts(ctx context.Context, loc string) []domain.Alert
}

// Policy is the dialogue policy. It is safe for concurrent use; requests for
// the same session should be serialized by the caller.
type Policy struct {
	store   *session.Store
	weather Forecaster
	logger  *slog.Logger
}

// New creates a Policy over a session store and a forecaster.
func New(store *session.Store, weather Forecaster, logger *slog.Logger) *Policy {
	return &Policy{store: store, weather: weather, logger: logger}
}

// turn carries the per-call state through the branches of Respond.
type turn struct {
	sessionID string
	intent    domain.Intent
	conf      float64
	lowConf   bool
	// entities after backfill from memory
	entities domain.Entities
	// explicitWhen is true when this utterance itself named a time
	explicitWhen bool
	// resolved is what gets recorded in the snapshot and remembered
	resolved domain.Entities
}

// Respond produces the reply for one utterance and updates session memory.
func (p *Policy) Respond(ctx context.Context, sessionID string, intent domain.Intent, confidence float64, entities domain.Entities) string {
	if intent == "" {
		intent = domain.IntentFallback
	}
	entities.DateTime = entities.DateTime.Normalize()

	t := &turn{
		sessionID:    sessionID,
		intent:       intent,
		conf:         confidence,
		lowConf:      confidence < LowConfidence,
		explicitWhen: entities.DateTime != "",
	}

	last, _ := session.Value[domain.Entities](p.store, sessionID, KeyLastEntities)
	if entities.Location == "" {
		entities.Location = last.Location
	}
	if entities.DateTime == "" {
		entities.DateTime = last.DateTime
	}
	if entities.Units == "" {
		entities.Units = last.Units
	}
	t.entities = entities
	t.resolved = entities

	pending, _ := session.Value[domain.PendingState](p.store, sessionID, KeyPending)

	switch intent {
	case domain.IntentGreet:
		return p.capture(t, intent, pick(sessionID, keyGreet, greetReplies), false)
	case domain.IntentHelp:
		return p.capture(t, intent, pick(sessionID, keyHelp, helpReplies), false)
	}

	loc := p.resolveLocation(sessionID, entities.Location)
	t.resolved.Location = loc

	switch {
	case intent.IsWeather():
		return p.weatherTurn(ctx, t, loc)
	case intent == domain.IntentAlerts:
		return p.alertsTurn(ctx, t, loc)
	case !pending.Idle() && loc != "":
		return p.resume(ctx, t, loc, pending)
	}
	return p.capture(t, intent, pick(sessionID, keyFallback, fallbackReplies), false)
}

func (p *Policy) weatherTurn(ctx context.Context, t *turn, loc string) string {
	if t.lowConf && (loc == "" || t.entities.DateTime == "") {
		p.park(t)
		return p.capture(t, t.intent, ClarifyReply, false)
	}
	if loc == "" {
		p.park(t)
		return p.capture(t, t.intent, NeedLocationReply, false)
	}

	when := t.entities.DateTime
	if when == "" || t.intent == domain.IntentCurrentWeather {
		when = domain.TimeToday
	}
	explicit := t.explicitWhen || when != domain.TimeToday
	return p.forecast(ctx, t, t.intent, loc, when, explicit)
}

func (p *Policy) alertsTurn(ctx context.Context, t *turn, loc string) string {
	if t.lowConf && loc == "" {
		return p.capture(t, t.intent, ClarifyReply, false)
	}
	if loc == "" {
		p.park(t)
		return p.capture(t, t.intent, NeedLocationReply, false)
	}
	return p.alerts(ctx, t, t.intent, loc)
}

// resume completes a parked request now that a location is known.
func (p *Policy) resume(ctx context.Context, t *turn, loc string, pending domain.PendingState) string {
	p.logger.Debug("resuming parked request",
		"session_id", t.sessionID,
		"intent", pending.Intent,
		"location", loc,
	)
	if pending.Intent == domain.IntentAlerts {
		return p.alerts(ctx, t, pending.Intent, loc)
	}

	when := pending.When
	if when == "" {
		when = t.entities.DateTime
	}
	if when == "" || pending.Intent == domain.IntentCurrentWeather {
		when = domain.TimeToday
	}
	explicit := t.explicitWhen || pending.When != "" || when != domain.TimeToday
	return p.forecast(ctx, t, pending.Intent, loc, when, explicit)
}

func (p *Policy) forecast(ctx context.Context, t *turn, intent domain.Intent, loc string, when domain.TimeRef, explicit bool) string {
	units := t.entities.Units
	if units == "" {
		units = domain.UnitsImperial
	}
	t.resolved.Location = loc
	t.resolved.DateTime = when

	fc := p.weather.GetForecast(ctx, loc, when, units)
	if fc.Failed() {
		return p.capture(t, intent, "Sorry, I couldn't fetch the forecast for "+loc+". "+fc.Error, true)
	}

	reply := formatForecast(loc, when, fc, explicit) + pick(t.sessionID, keySuffix, forecastSuffixes)
	p.store.Delete(t.sessionID, KeyPending)
	t.resolved.Units = units
	return p.capture(t, intent, strings.TrimSpace(reply), true)
}

func (p *Policy) alerts(ctx context.Context, t *turn, intent domain.Intent, loc string) string {
	t.resolved.Location = loc
	alerts := p.weather.GetAlerts(ctx, loc)
	p.store.Delete(t.sessionID, KeyPending)
	if len(alerts) == 0 {
		return p.capture(t, intent, "No active alerts for "+loc+".", true)
	}
	reply := formatAlerts(loc, alerts) + pick(t.sessionID, keyAlertsTail, alertsTails)
	return p.capture(t, intent, reply, true)
}

// park records the incomplete request so a later location can finish it.
func (p *Policy) park(t *turn) {
	hint := t.entities.DateTime
	if hint == "" {
		hint = domain.TimeToday
	}
	p.store.Set(t.sessionID, KeyPending, domain.AwaitingLocationFor(t.intent, hint))
	if t.resolved.DateTime == "" {
		t.resolved.DateTime = hint
	}
}

// resolveLocation canonicalizes a location named this turn, remembering it
// when it carries a state, or falls back to the remembered location.
func (p *Policy) resolveLocation(sessionID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		loc, _ := session.Value[string](p.store, sessionID, KeyLastLocation)
		return loc
	}
	loc := geocode.Canonicalize(text)
	if geocode.IsCityState(loc) {
		p.store.Set(sessionID, KeyLastLocation, loc)
	}
	return loc
}

// capture appends the turn snapshot and, when remember is set, stores the
// resolved entities as the session's context for the next turn.
func (p *Policy) capture(t *turn, intent domain.Intent, reply string, remember bool) string {
	p.store.AppendTurn(t.sessionID, intent, t.conf, t.resolved, reply)
	if remember {
		p.store.Set(t.sessionID, KeyLastEntities, t.resolved)
		if t.resolved.Location != "" {
			p.rememberLocation(t.sessionID, t.resolved.Location)
		}
	}
	return reply
}

// rememberLocation never replaces a remembered "City, ST" with a less
// specific location.
func (p *Policy) rememberLocation(sessionID, loc string) {
	if geocode.IsCityState(loc) || geocode.IsZIP(loc) {
		p.store.Set(sessionID, KeyLastLocation, loc)
		return
	}
	if prev, _ := session.Value[string](p.store, sessionID, KeyLastLocation); !geocode.IsCityState(prev) {
		p.store.Set(sessionID, KeyLastLocation, loc)
	}
}
