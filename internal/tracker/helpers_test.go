package tracker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/star/tletracker/internal/propagation"
)

// ISS-like elements.
const (
	tleLine1 = "1 25544U 98067A   20029.54791435  .00001264  00000-0  29621-4 0  9993"
	tleLine2 = "2 25544  51.6434  21.3435 0007417 318.0083  42.0574 15.49176870211460"
)

var tlePayload = []byte(tleLine1 + "\n" + tleLine2)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type published struct {
	topic   string
	payload string
}

// fakeTransport records subscriptions and publishes. duringSubscribe, when
// set, runs after the subscription is granted and before Subscribe returns,
// the way a broker delivers retained messages.
type fakeTransport struct {
	mu              sync.Mutex
	subscribed      []string
	published       []published
	subscribeErr    map[string]error
	publishErr      error
	duringSubscribe func()
}

func (f *fakeTransport) Subscribe(topics ...string) error {
	f.mu.Lock()
	for _, topic := range topics {
		if err := f.subscribeErr[topic]; err != nil {
			f.mu.Unlock()
			return err
		}
	}
	f.subscribed = append(f.subscribed, topics...)
	hook := f.duringSubscribe
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakeTransport) Published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

func (f *fakeTransport) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeModel returns a fixed subpoint stamped with the requested time.
type fakeModel struct {
	sp  propagation.Subpoint
	err error
}

func (m fakeModel) Subpoint(t time.Time) (propagation.Subpoint, error) {
	if m.err != nil {
		return propagation.Subpoint{}, m.err
	}
	sp := m.sp
	sp.Time = t.UTC().Truncate(time.Second)
	return sp, nil
}

func fakeLoader(m fakeModel) Loader {
	return func(line1, line2 string) (Model, error) {
		return m, nil
	}
}

var errBroker = errors.New("broker unavailable")

// newConnected returns a subscribed coordinator backed by real SGP4.
func newConnected(clock *fakeClock) (*Coordinator, *State, *fakeTransport) {
	transport := &fakeTransport{}
	state := NewState("CubeSat", nil)
	c := NewCoordinator(state, transport, clock.Now, testLogger())
	if err := c.OnConnect(); err != nil {
		panic(err)
	}
	return c, state, transport
}
