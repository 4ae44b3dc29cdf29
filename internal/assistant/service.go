// Package assistant wires classification, entity extraction, and the
// dialogue policy into the request-level operations exposed by the HTTP
// service and the CLI.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
	"github.com/couchcryptid/weather-assistant/internal/policy"
	"github.com/couchcryptid/weather-assistant/internal/session"
)

// MaxLocationLength bounds location-update input.
const MaxLocationLength = 120

// IntentError labels a query that could not be classified.
const IntentError domain.Intent = "error"

// ErrorReply is returned when a query cannot be processed at all.
const ErrorReply = "Sorry, something went wrong while processing your request."

// Location-update validation errors.
var (
	ErrEmptyLocation           = errors.New("location must be provided")
	ErrLocationTooLong         = errors.New("location is too long")
	ErrUninterpretableLocation = errors.New("unable to interpret location")
	ErrUnknownLocation         = errors.New("location not recognized")
)

// Classifier maps text to an intent and a confidence in [0,1].
type Classifier interface {
	Predict(text string) (domain.Intent, float64, error)
}

// Extractor pulls entities out of text.
type Extractor interface {
	Extract(text string) domain.Entities
}

// Responder produces the reply for one classified utterance.
type Responder interface {
	Respond(ctx context.Context, sessionID string, intent domain.Intent, confidence float64, entities domain.Entities) string
}

// Locator canonicalizes and geocodes locations.
type Locator interface {
	Canonicalize(text string) string
	Geocode(ctx context.Context, text string) (domain.Coordinates, bool)
}

// Pinger is a backend that must be reachable for the service to be ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Service. Interactions, Backends, and Clock
// are optional.
type Deps struct {
	Classifier   Classifier
	Extractor    Extractor
	Policy       Responder
	Store        *session.Store
	Locator      Locator
	Interactions domain.InteractionLogger
	Backends     []Pinger
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// Service handles queries and session updates.
type Service struct {
	deps Deps
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Service{deps: d}
}

// CheckReadiness reports an error until a classifier is loaded and every
// backend answers a ping.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.deps.Classifier == nil {
		return errors.New("intent classifier not loaded")
	}
	for _, b := range s.deps.Backends {
		if err := b.Ping(ctx); err != nil {
			return fmt.Errorf("backend unavailable: %w", err)
		}
	}
	return nil
}

// Result is the outcome of one handled query.
type Result struct {
	SessionID  string          `json:"session_id"`
	Intent     domain.Intent   `json:"intent"`
	Confidence float64         `json:"confidence"`
	Entities   domain.Entities `json:"entities"`
	Reply      string          `json:"reply"`
	LatencyMS  int64           `json:"latency_ms"`
}

// Handle classifies text, extracts entities, and runs the dialogue policy.
// An empty sessionID starts a new session. The interaction is logged after
// the reply is computed; logging failures do not affect the result.
func (s *Service) Handle(ctx context.Context, sessionID, text string) Result {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	start := s.deps.Clock.Now()
	logger := observability.LoggerFromContext(ctx, s.deps.Logger)

	var (
		intent   domain.Intent
		conf     float64
		entities domain.Entities
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		intent, conf, err = s.deps.Classifier.Predict(text)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		entities = s.deps.Extractor.Extract(text)
		return nil
	})

	var reply string
	if err := g.Wait(); err != nil {
		logger.Error("prediction failed", "session_id", sessionID, "error", err)
		intent, conf, entities, reply = IntentError, 0, domain.Entities{}, ErrorReply
	} else {
		reply = s.deps.Policy.Respond(ctx, sessionID, intent, conf, entities)
	}

	elapsed := s.deps.Clock.Since(start)
	res := Result{
		SessionID:  sessionID,
		Intent:     intent,
		Confidence: conf,
		Entities:   entities,
		Reply:      reply,
		LatencyMS:  elapsed.Milliseconds(),
	}
	s.deps.Metrics.ObserveRequest(string(intent), conf < policy.LowConfidence, elapsed.Seconds())

	logger.Debug("query handled",
		"session_id", sessionID,
		"intent", intent,
		"confidence", conf,
		"latency_ms", res.LatencyMS,
	)

	if s.deps.Interactions != nil {
		rec := domain.Interaction{
			SessionID:  sessionID,
			Text:       text,
			Intent:     intent,
			Confidence: conf,
			LatencyMS:  res.LatencyMS,
			Entities:   entities,
			Reply:      reply,
			Timestamp:  s.deps.Clock.Now().UTC(),
		}
		if err := s.deps.Interactions.LogInteraction(ctx, rec); err != nil {
			logger.Warn("interaction not logged", "session_id", sessionID, "error", err)
		}
	}
	return res
}

// LocationUpdate is the outcome of a successful UpdateLocation.
type LocationUpdate struct {
	Location    string             `json:"location"`
	Coordinates domain.Coordinates `json:"coordinates"`
}

// UpdateLocation validates, canonicalizes, and geocodes location and stores
// it as the session's remembered location. Validation failures return one of
// the Err* sentinels and leave the session untouched.
func (s *Service) UpdateLocation(ctx context.Context, sessionID, location string) (LocationUpdate, error) {
	loc := strings.TrimSpace(location)
	switch {
	case loc == "":
		return LocationUpdate{}, ErrEmptyLocation
	case len([]rune(loc)) > MaxLocationLength:
		return LocationUpdate{}, ErrLocationTooLong
	}

	canonical := s.deps.Locator.Canonicalize(loc)
	if canonical == "" {
		return LocationUpdate{}, ErrUninterpretableLocation
	}
	coords, ok := s.deps.Locator.Geocode(ctx, canonical)
	if !ok {
		return LocationUpdate{}, ErrUnknownLocation
	}

	s.deps.Store.Set(sessionID, policy.KeyLastLocation, canonical)
	s.deps.Store.Set(sessionID, policy.KeyLastEntities, domain.Entities{Location: canonical})
	observability.LoggerFromContext(ctx, s.deps.Logger).Info("session location updated",
		"session_id", sessionID,
		"location", canonical,
	)
	return LocationUpdate{Location: canonical, Coordinates: coords}, nil
}

// Sessions returns the number of live sessions.
func (s *Service) Sessions() int {
	return s.deps.Store.Len()
}

// Turns returns the session's recent turn snapshots, oldest first.
func (s *Service) Turns(sessionID string) []domain.TurnSnapshot {
	return s.deps.Store.Turns(sessionID)
}
