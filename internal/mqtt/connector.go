// Package mqtt owns the single connection to the broker: wildcard
// subscriptions for inbound device messages and publication of
// actuator commands.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"growrack/internal/config"
	"growrack/internal/logging"
	"growrack/internal/metrics"
)

// ErrNotConnected is returned by Publish when the connector has no
// live broker session. Commands are never queued silently.
var ErrNotConnected = errors.New("mqtt: not connected")

// After this many reconnect attempts the connector stops retrying
// and force-closes the session.
const maxReconnectAttempts = 10

const (
	commandQoS     byte = 1
	subscribeQoS   byte = 1
	connectTimeout      = 10 * time.Second
	disconnectWait uint = 250
)

// State is the connector's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// MessageHandler receives every inbound message. It must not panic;
// the router guards its own processing.
type MessageHandler func(topic string, payload []byte)

// Connector wraps the paho client with connection-state tracking,
// idempotent subscriptions, and a reconnect ceiling.
type Connector struct {
	cfg config.MQTTConfig
	log zerolog.Logger

	mu         sync.Mutex
	client     pahomqtt.Client
	state      State
	reconnects int
	subscribed map[string]struct{}
	handler    MessageHandler
	closing    bool
}

// NewConnector builds the connector and its paho client. No socket
// is opened until Connect.
func NewConnector(cfg config.MQTTConfig) *Connector {
	c := &Connector{
		cfg:        cfg,
		log:        logging.WithComponent("mqtt"),
		state:      StateDisconnected,
		subscribed: make(map[string]struct{}),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(30 * time.Second).
		// Callbacks run on their own goroutines so a slow processor
		// never stalls paho's delivery loop.
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = pahomqtt.NewClient(opts)
	return c
}

// OnMessage installs the inbound dispatch target. Must be called
// before Connect.
func (c *Connector) OnMessage(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// validateConfig rejects an incomplete broker configuration before
// any socket is attempted.
func (c *Connector) validateConfig() error {
	var missing []string
	if c.cfg.Host == "" {
		missing = append(missing, "host")
	}
	if c.cfg.Port <= 0 {
		missing = append(missing, "port")
	}
	if c.cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.cfg.Namespace == "" {
		missing = append(missing, "namespace")
	}
	if (c.cfg.Username == "") != (c.cfg.Password == "") {
		missing = append(missing, "credentials (username and password together)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mqtt config incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Connect validates the configuration, dials the broker, and waits
// for the handshake. The on-connect handler performs the initial
// subscriptions.
func (c *Connector) Connect(ctx context.Context) error {
	if err := c.validateConfig(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("mqtt: connect called in state %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Info().Str("broker", c.cfg.BrokerURL()).Str("client_id", c.cfg.ClientID).Msg("connecting to broker")

	token := c.client.Connect()
	select {
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Subscribe registers a wildcard filter at QoS 1. Subscribing to a
// filter that is already registered is a no-op. The subscription is
// replayed automatically after every reconnect.
func (c *Connector) Subscribe(topic string) error {
	c.mu.Lock()
	if _, ok := c.subscribed[topic]; ok {
		c.mu.Unlock()
		c.log.Debug().Str("topic", topic).Msg("already subscribed, skipping")
		return nil
	}
	c.subscribed[topic] = struct{}{}
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		// Desired set only; the on-connect handler will subscribe.
		return nil
	}
	return c.subscribeNow(topic)
}

func (c *Connector) subscribeNow(topic string) error {
	token := c.client.Subscribe(topic, subscribeQoS, c.forward)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

// forward hands an inbound message to the installed handler.
func (c *Connector) forward(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		c.log.Warn().Str("topic", msg.Topic()).Msg("message received before handler installed, dropping")
		return
	}
	h(msg.Topic(), msg.Payload())
}

// Publish sends a payload at QoS 1 and waits for the broker ack.
// It fails immediately with ErrNotConnected when there is no live
// session.
func (c *Connector) Publish(ctx context.Context, topic string, payload any) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}

	var raw []byte
	switch p := payload.(type) {
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", topic, err)
		}
	}

	token := c.client.Publish(topic, commandQoS, false, raw)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Namespace returns the topic namespace this deployment uses.
func (c *Connector) Namespace() string {
	return c.cfg.Namespace
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot reports the connector's state for health checks.
type Snapshot struct {
	State         string   `json:"state"`
	Reconnects    int      `json:"reconnects"`
	Subscriptions []string `json:"subscriptions"`
}

// Snapshot returns a point-in-time view of the connection.
func (c *Connector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		subs = append(subs, t)
	}
	sort.Strings(subs)

	return Snapshot{
		State:         c.state.String(),
		Reconnects:    c.reconnects,
		Subscriptions: subs,
	}
}

// Close ends the session gracefully, letting in-flight acks drain.
func (c *Connector) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.mu.Unlock()

	c.client.Disconnect(disconnectWait)
	c.setState(StateDisconnected)
	c.log.Info().Msg("disconnected from broker")
}

// onConnect runs on the initial handshake and after every automatic
// reconnect: the attempt counter resets and all desired filters are
// (re-)subscribed, since a clean session drops them server-side.
func (c *Connector) onConnect(pahomqtt.Client) {
	c.mu.Lock()
	c.state = StateConnected
	c.reconnects = 0
	topics := make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	c.log.Info().Msg("broker session established")
	for _, t := range topics {
		if err := c.subscribeNow(t); err != nil {
			c.log.Error().Str("topic", t).Err(err).Msg("resubscribe failed")
		}
	}
}

func (c *Connector) onConnectionLost(_ pahomqtt.Client, err error) {
	c.mu.Lock()
	closing := c.closing
	if !closing {
		c.state = StateReconnecting
	}
	c.mu.Unlock()
	if closing {
		return
	}
	c.log.Warn().Err(err).Msg("broker connection lost")
}

// onReconnecting fires before each automatic reconnect attempt. At
// the ceiling the session is force-closed instead of retrying
// forever against a wedged broker.
func (c *Connector) onReconnecting(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.reconnects++
	attempt := c.reconnects
	ceiling := attempt >= maxReconnectAttempts
	if ceiling {
		c.closing = true
	}
	c.mu.Unlock()

	metrics.BrokerReconnects.Inc()

	if !ceiling {
		c.log.Warn().Int("attempt", attempt).Msg("reconnecting to broker")
		return
	}

	c.log.Error().Int("attempts", attempt).Msg("reconnect ceiling reached, closing connection")
	go func() {
		c.client.Disconnect(0)
		c.setState(StateDisconnected)
	}()
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
