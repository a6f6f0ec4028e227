package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/tletracker/internal/metrics"
	"github.com/star/tletracker/internal/tle"
)

// Topic names of the messaging contract.
const (
	TopicTLE               = "cubesat/tle"
	TopicPositionRequest   = "cubesat/req_position"
	TopicLastUpdateRequest = "cubesat/req_last_update"
	TopicPosition          = "cubesat/position"
	TopicLastUpdate        = "cubesat/last_update"
)

// InboundTopics returns the topics subscribed on every connect.
func InboundTopics() []string {
	return []string{TopicTLE, TopicPositionRequest, TopicLastUpdateRequest}
}

// Transport is the message bus as seen by the coordinator. Subscribe
// issues all topics in one request and returns once the broker granted
// them. Publish is fire-and-forget: delivery failures after it returns are
// the transport's.
type Transport interface {
	Subscribe(topics ...string) error
	Publish(topic string, payload []byte) error
}

// ConnState is the coordinator's view of the transport connection.
type ConnState int32

const (
	Disconnected ConnState = iota
	// Subscribing is the window between issuing the subscription and the
	// broker granting it. Messages received meanwhile are queued.
	Subscribing
	Subscribed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// maxPending bounds the messages held while a subscription completes.
// Retained messages arrive there, one per topic.
const maxPending = 64

type message struct {
	topic   string
	payload []byte
}

// Coordinator routes inbound messages to the satellite state and publishes
// responses. HandleMessage and Ingest may be called from any goroutine;
// access to the state is serialized internally.
type Coordinator struct {
	state     *State
	transport Transport
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex // serializes state access across handlers

	gate    sync.Mutex // guards conn transitions and pending
	conn    atomic.Int32
	pending []message
}

// NewCoordinator wires a coordinator. A nil now uses time.Now.
func NewCoordinator(state *State, transport Transport, now func() time.Time, logger *slog.Logger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		state:     state,
		transport: transport,
		now:       now,
		logger:    logger.With("component", "coordinator"),
	}
}

// ConnState reports whether the inbound topics are currently subscribed.
func (c *Coordinator) ConnState() ConnState {
	return ConnState(c.conn.Load())
}

func (c *Coordinator) setConn(s ConnState) {
	c.conn.Store(int32(s))
}

// OnConnect subscribes the inbound topics. It runs on every (re)connect;
// subscribing twice is harmless. Messages delivered before the broker
// granted every topic are queued and handled, in order, once it has.
func (c *Coordinator) OnConnect() error {
	c.gate.Lock()
	c.pending = nil
	c.setConn(Subscribing)
	c.gate.Unlock()

	if err := c.transport.Subscribe(InboundTopics()...); err != nil {
		c.gate.Lock()
		c.pending = nil
		c.setConn(Disconnected)
		c.gate.Unlock()
		return fmt.Errorf("subscribing to inbound topics: %w", err)
	}

	if c.drain() {
		c.logger.Info("subscribed", "topics", InboundTopics())
	}
	return nil
}

// drain handles queued messages and then opens the gate. Messages that
// arrive while draining join the queue, so arrival order is kept. It
// reports false if the connection was lost meanwhile.
func (c *Coordinator) drain() bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	for len(c.pending) > 0 {
		queued := c.pending
		c.pending = nil
		c.gate.Unlock()
		for _, m := range queued {
			c.dispatch(m.topic, m.payload)
		}
		c.gate.Lock()
		if c.ConnState() != Subscribing {
			return false
		}
	}
	if c.ConnState() != Subscribing {
		return false
	}
	c.setConn(Subscribed)
	return true
}

// OnDisconnect marks the connection lost.
func (c *Coordinator) OnDisconnect(err error) {
	c.gate.Lock()
	c.pending = nil
	c.setConn(Disconnected)
	c.gate.Unlock()
	c.logger.Warn("transport disconnected", "error", err)
}

// HandleMessage dispatches one inbound message by topic. It never panics
// on bad input and never returns an error: rejected messages are logged.
func (c *Coordinator) HandleMessage(topic string, payload []byte) {
	c.gate.Lock()
	switch c.ConnState() {
	case Disconnected:
		c.gate.Unlock()
		c.logger.Debug("dropping message received while disconnected", "topic", topic)
		return
	case Subscribing:
		if len(c.pending) >= maxPending {
			c.gate.Unlock()
			c.logger.Warn("dropping message, subscription still pending", "topic", topic)
			return
		}
		c.pending = append(c.pending, message{topic: topic, payload: payload})
		c.gate.Unlock()
		return
	}
	c.gate.Unlock()

	c.dispatch(topic, payload)
}

func (c *Coordinator) dispatch(topic string, payload []byte) {
	switch topic {
	case TopicTLE:
		metrics.RecordMessage(topic)
		if err := c.Ingest(payload); err != nil {
			c.logger.Warn("discarding TLE update", "error", err, "bytes", len(payload))
		}
	case TopicPositionRequest:
		metrics.RecordMessage(topic)
		c.publishPosition()
	case TopicLastUpdateRequest:
		metrics.RecordMessage(topic)
		c.publishLastUpdate()
	default:
		metrics.RecordMessage("other")
		c.logger.Debug("ignoring message on unknown topic", "topic", topic)
	}
}

// Ingest installs a two-line payload as the current element set.
// Errors wrap ErrInvalidTLE and leave the previous state in place.
func (c *Coordinator) Ingest(payload []byte) error {
	line1, line2, err := tle.SplitPair(payload)
	if err != nil {
		metrics.RecordIngest(false)
		return fmt.Errorf("%w: %v", ErrInvalidTLE, err)
	}

	c.mu.Lock()
	err = c.state.Ingest(line1, line2, c.now())
	snap, _ := c.state.Snapshot()
	c.mu.Unlock()
	if err != nil {
		metrics.RecordIngest(false)
		return err
	}
	metrics.RecordIngest(true)

	c.logger.Info("TLE updated",
		"norad_id", snap.Entry.NORADID,
		"epoch", snap.Entry.Epoch.Format(time.RFC3339),
		"last_update", snap.LastUpdate.Format(time.RFC3339Nano),
	)
	return nil
}

func (c *Coordinator) publishPosition() {
	start := time.Now()
	c.mu.Lock()
	sp, err := c.state.CurrentPosition(c.now())
	c.mu.Unlock()
	if errors.Is(err, ErrNoTLE) {
		c.logger.Debug("position requested before any TLE; not responding")
		return
	}
	if err != nil {
		c.logger.Warn("position computation failed", "error", err)
		return
	}
	metrics.ObservePosition(time.Since(start))

	payload, err := encodePosition(sp)
	if err != nil {
		c.logger.Error("encoding position", "error", err)
		return
	}
	c.publish(TopicPosition, payload)
}

func (c *Coordinator) publishLastUpdate() {
	c.mu.Lock()
	at, err := c.state.LastUpdate()
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("last update requested before any TLE; not responding")
		return
	}
	c.publish(TopicLastUpdate, []byte(isoFormat(at)))
}

func (c *Coordinator) publish(topic string, payload []byte) {
	if err := c.transport.Publish(topic, payload); err != nil {
		c.logger.Warn("publish failed", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("published", "topic", topic, "bytes", len(payload))
}
