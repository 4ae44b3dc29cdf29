package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

const testSession = "sess-1"

func newTestStore(cfg Config) (*Store, *clockwork.FakeClock, *observability.Metrics) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	return NewStore(cfg, clock, metrics), clock, metrics
}

func TestStore_GetAfterSet(t *testing.T) {
	s, _, _ := newTestStore(Config{})

	s.Set(testSession, "last_location", "Austin, TX")

	assert.Equal(t, "Austin, TX", s.Get(testSession, "last_location", nil))
	assert.Equal(t, "fallback", s.Get(testSession, "missing", "fallback"))
	assert.Equal(t, "fallback", s.Get("other", "last_location", "fallback"))
}

func TestStore_GetDoesNotCreateSession(t *testing.T) {
	s, _, _ := newTestStore(Config{})

	s.Get("ghost", "k", nil)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ExpiredSessionUnreachable(t *testing.T) {
	s, clock, metrics := newTestStore(Config{TTL: time.Minute})

	s.Set(testSession, "k", "v")
	s.AppendTurn(testSession, domain.IntentGreet, 0.9, domain.Entities{}, "Hi!")

	clock.Advance(time.Minute)

	assert.Nil(t, s.Get(testSession, "k", nil))
	assert.Empty(t, s.Turns(testSession))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsEvicted.WithLabelValues("expired")))
}

func TestStore_AccessSlidesExpiry(t *testing.T) {
	s, clock, _ := newTestStore(Config{TTL: time.Minute})

	s.Set(testSession, "k", "v")
	clock.Advance(45 * time.Second)
	assert.Equal(t, "v", s.Get(testSession, "k", nil))

	clock.Advance(45 * time.Second)
	assert.Equal(t, "v", s.Get(testSession, "k", nil), "read should have refreshed expiry")

	clock.Advance(61 * time.Second)
	assert.Nil(t, s.Get(testSession, "k", nil))
}

func TestStore_CapacityEvictsSoonestToExpire(t *testing.T) {
	s, clock, metrics := newTestStore(Config{TTL: time.Hour, MaxSessions: 2})

	s.Set("a", "k", 1)
	clock.Advance(time.Second)
	s.Set("b", "k", 2)
	clock.Advance(time.Second)
	s.Get("a", "k", nil) // a now expires last
	clock.Advance(time.Second)
	s.Set("c", "k", 3)

	assert.Equal(t, 2, s.Len())
	assert.Nil(t, s.Get("b", "k", nil), "b had the soonest expiry")
	assert.Equal(t, 1, s.Get("a", "k", nil))
	assert.Equal(t, 3, s.Get("c", "k", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsEvicted.WithLabelValues("capacity")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SessionsLive))
}

func TestStore_TurnRingKeepsMostRecent(t *testing.T) {
	s, clock, _ := newTestStore(Config{})

	for i := range 25 {
		s.AppendTurn(testSession, domain.IntentForecast, float64(i)/100, domain.Entities{}, fmt.Sprintf("reply %d", i))
		clock.Advance(time.Second)
	}

	turns := s.Turns(testSession)
	require.Len(t, turns, DefaultTurnCapacity)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("reply %d", i+5), turn.Reply)
	}
	assert.True(t, turns[0].Timestamp.Before(turns[len(turns)-1].Timestamp))

	mirrored, ok := Value[[]domain.TurnSnapshot](s, testSession, KeyTurnHistory)
	require.True(t, ok)
	if diff := cmp.Diff(turns, mirrored); diff != "" {
		t.Errorf("mirrored history mismatch (-turns +mirrored):\n%s", diff)
	}
}

func TestStore_TurnsReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(Config{TurnCapacity: 3})

	snap := s.AppendTurn(testSession, domain.IntentAlerts, 0.8,
		domain.Entities{Location: "Austin, TX"}, "No active alerts for Austin, TX.")
	assert.Equal(t, domain.IntentAlerts, snap.Intent)

	turns := s.Turns(testSession)
	turns[0].Reply = "mutated"

	assert.Equal(t, "No active alerts for Austin, TX.", s.Turns(testSession)[0].Reply)
	assert.Empty(t, s.Turns("unknown"))
}

func TestStore_Delete(t *testing.T) {
	s, _, _ := newTestStore(Config{})
	s.Set(testSession, "pending", "x")
	s.Delete(testSession, "pending")
	assert.Nil(t, s.Get(testSession, "pending", nil))
}

func TestValue_TypeMismatch(t *testing.T) {
	s, _, _ := newTestStore(Config{})
	s.Set(testSession, "n", 42)

	_, ok := Value[string](s, testSession, "n")
	assert.False(t, ok)

	n, ok := Value[int](s, testSession, "n")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _, _ := newTestStore(Config{MaxSessions: 10})

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", i%12)
			for j := range 50 {
				s.Set(sid, "k", j)
				s.Get(sid, "k", nil)
				s.AppendTurn(sid, domain.IntentGreet, 1, domain.Entities{}, "")
				s.Turns(sid)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Len(), 10)
}
