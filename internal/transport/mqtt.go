// Package transport connects the coordinator to an MQTT broker using the
// Eclipse Paho client. It owns connection handling, reconnects and QoS and
// carries no business logic.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/star/tletracker/internal/metrics"
)

// Config holds broker connection settings loaded from environment variables.
type Config struct {
	Host           string
	Port           int
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	QoS            byte
	ConnectTimeout time.Duration // per connect attempt and per SUBACK wait
}

// BrokerURL returns the tcp:// URL for Host and Port.
func (c Config) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Handler receives connection events and inbound messages.
type Handler interface {
	OnConnect() error
	OnDisconnect(err error)
	HandleMessage(topic string, payload []byte)
}

// pahoClient is the subset of paho.Client used here.
type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
	SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var (
	// ErrNotStarted is returned by Subscribe and Publish before Start.
	ErrNotStarted = errors.New("mqtt client not started")
	// ErrSubscriptionRefused is returned when the broker answers a
	// SUBACK with the failure code for one or more topics.
	ErrSubscriptionRefused = errors.New("subscription refused by broker")
)

// subackFailure is the MQTT 3.1.1 SUBACK return code for a refused filter.
const subackFailure = 0x80

// maxSubscribeRetry caps the delay between subscribe attempts on a live
// connection.
const maxSubscribeRetry = 30 * time.Second

// subscribeResult is implemented by *paho.SubscribeToken.
type subscribeResult interface {
	Result() map[string]byte
}

// Client is an MQTT connection that reconnects on its own and re-runs the
// handler's OnConnect after every reconnect.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	newClient func(*paho.ClientOptions) pahoClient
	client    pahoClient

	ctx            context.Context
	subscribeRetry time.Duration // first delay after a failed OnConnect
	connects       atomic.Uint64 // bumped per connect; stale retry loops stop
}

// New creates an unstarted client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Client{
		cfg:            cfg,
		logger:         logger.With("component", "transport"),
		ctx:            context.Background(),
		subscribeRetry: time.Second,
		newClient: func(opts *paho.ClientOptions) pahoClient {
			return paho.NewClient(opts)
		},
	}
}

func (c *Client) options(h Handler) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL())
	opts.SetClientID(c.cfg.ClientID)
	opts.SetUsername(c.cfg.Username)
	opts.SetPassword(c.cfg.Password)
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	// One message at a time, in arrival order.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(func(paho.Client) {
		metrics.SetMQTTConnected(true)
		c.logger.Info("connected to broker", "broker", c.cfg.BrokerURL())
		c.subscribeLoop(h)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		metrics.SetMQTTConnected(false)
		h.OnDisconnect(err)
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.logger.Info("reconnecting to broker", "broker", c.cfg.BrokerURL())
	})
	opts.SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) {
		h.HandleMessage(msg.Topic(), msg.Payload())
	})
	return opts
}

// Start begins connecting in the background. Connection attempts repeat
// until one succeeds or ctx is done; h.OnConnect runs on each success.
func (c *Client) Start(ctx context.Context, h Handler) {
	c.ctx = ctx
	c.client = c.newClient(c.options(h))
	token := c.client.Connect()

	c.logger.Info("connecting to broker",
		"broker", c.cfg.BrokerURL(),
		"client_id", c.cfg.ClientID,
		"keepalive_seconds", c.cfg.KeepAlive.Seconds(),
	)

	go func() {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				c.logger.Error("broker connect failed", "broker", c.cfg.BrokerURL(), "error", err)
			}
		case <-ctx.Done():
		}
	}()
}

// subscribeLoop runs h.OnConnect until it succeeds. A live session with
// a failed subscription gets no reconnect from Paho, so the attempt is
// repeated with backoff. The loop ends when the connection drops (the
// next connect starts a fresh loop) or ctx is done.
func (c *Client) subscribeLoop(h Handler) {
	gen := c.connects.Add(1)
	delay := c.subscribeRetry
	for attempt := 1; ; attempt++ {
		err := h.OnConnect()
		if err == nil {
			return
		}
		c.logger.Error("subscribing after connect", "attempt", attempt, "retry_in", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
		if c.ctx.Err() != nil || !c.Connected() || c.connects.Load() != gen {
			return
		}
		delay = min(delay*2, maxSubscribeRetry)
	}
}

// Subscribe subscribes all topics in one SUBSCRIBE packet and waits for
// the broker's acknowledgement. Messages are delivered to the Handler
// passed to Start.
func (c *Client) Subscribe(topics ...string) error {
	if c.client == nil {
		return ErrNotStarted
	}

	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = c.cfg.QoS
	}

	token := c.client.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: no SUBACK within %s", strings.Join(topics, ", "), c.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", strings.Join(topics, ", "), err)
	}

	// Paho records per-filter refusals in the token without an error.
	if res, ok := token.(subscribeResult); ok {
		granted := res.Result()
		var refused []string
		for _, topic := range topics {
			if code, ok := granted[topic]; ok && code == subackFailure {
				refused = append(refused, topic)
			}
		}
		if len(refused) > 0 {
			return fmt.Errorf("%w: %s", ErrSubscriptionRefused, strings.Join(refused, ", "))
		}
	}

	c.logger.Debug("subscribed", "topics", topics, "qos", c.cfg.QoS)
	return nil
}

// Publish sends payload without waiting for delivery. The outcome is
// logged and counted when the token completes.
func (c *Client) Publish(topic string, payload []byte) error {
	if c.client == nil {
		return ErrNotStarted
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	go func() {
		<-token.Done()
		err := token.Error()
		metrics.RecordPublish(topic, err)
		if err != nil {
			c.logger.Warn("publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

// Connected reports whether the network connection is currently up.
func (c *Client) Connected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Stop disconnects, giving in-flight work up to 250ms.
func (c *Client) Stop() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	metrics.SetMQTTConnected(false)
	c.logger.Info("disconnected from broker")
}
