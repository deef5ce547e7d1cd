package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// Topic segments mirrored from the tree layout.
const (
	topicDevices = "devices"
	topicEvents  = "events"
	nodeStatus   = "status"
)

// Subscriber is the part of mqtt.Client the bridge uses.
type Subscriber interface {
	SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Bridge applies MQTT messages to a Tree.
//
// Topics (after the configured prefix):
//
//	devices/{deviceId}/status   JSON object; replaces the status node
//	devices/{deviceId}/{field}  any JSON value; replaces that node
//	events/{eventId}            JSON object; creates the log entry
//
// An empty payload deletes the addressed node.
type Bridge struct {
	client  Subscriber
	tree    *Tree
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithTopicPrefix prepends prefix to every subscribed topic, e.g. "plugs/".
func WithTopicPrefix(prefix string) BridgeOption {
	return func(b *Bridge) {
		b.prefix = prefix
	}
}

// WithQoS sets the subscription quality of service (0, 1 or 2).
func WithQoS(qos byte) BridgeOption {
	return func(b *Bridge) {
		b.qos = qos
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l
	}
}

// NewBridge creates a bridge feeding tree from client.
func NewBridge(client Subscriber, tree *Tree, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client:  client,
		tree:    tree,
		qos:     1,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "mqtt-bridge")
	return b
}

// Topics returns the subscription filters.
func (b *Bridge) Topics() []string {
	return []string{
		b.prefix + topicDevices + "/#",
		b.prefix + topicEvents + "/+",
	}
}

// Start subscribes to the device and event topics.
func (b *Bridge) Start(ctx context.Context) error {
	filters := make(map[string]byte)
	for _, topic := range b.Topics() {
		filters[topic] = b.qos
	}
	token := b.client.SubscribeMultiple(filters, b.HandleMessage)
	if err := waitToken(ctx, token, b.timeout); err != nil {
		return fmt.Errorf("subscribe %v: %w", b.Topics(), err)
	}
	b.logger.Info("subscribed", "topics", b.Topics(), "qos", b.qos)
	return nil
}

// Stop unsubscribes. Errors are logged.
func (b *Bridge) Stop() {
	token := b.client.Unsubscribe(b.Topics()...)
	if err := waitToken(context.Background(), token, b.timeout); err != nil {
		b.logger.Warn("unsubscribe failed", "error", err)
	}
}

// HandleMessage routes one message to the tree. Malformed messages are
// logged and dropped.
func (b *Bridge) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := b.apply(msg.Topic(), msg.Payload()); err != nil {
		b.logger.Warn("dropping message", "topic", msg.Topic(), "error", err)
	}
}

func (b *Bridge) apply(topic string, payload []byte) error {
	rest, ok := strings.CutPrefix(topic, b.prefix)
	if !ok {
		return fmt.Errorf("topic outside prefix %q", b.prefix)
	}
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 3 && parts[0] == topicDevices && parts[1] != "":
		deviceID, node := parts[1], parts[2]
		if node == nodeStatus {
			return b.applyStatus(deviceID, payload)
		}
		return b.applyField(deviceID, node, payload)

	case len(parts) == 2 && parts[0] == topicEvents && parts[1] != "":
		return b.applyEvent(parts[1], payload)

	default:
		return fmt.Errorf("unrecognized topic")
	}
}

func (b *Bridge) applyStatus(deviceID string, payload []byte) error {
	if len(payload) == 0 {
		b.tree.RemoveStatus(deviceID)
		return nil
	}
	status, err := record.UnmarshalFields(payload)
	if err != nil {
		return fmt.Errorf("status for %s: %w", deviceID, err)
	}
	// An empty object or null removes the node, as in the live database.
	if len(status) == 0 {
		b.tree.RemoveStatus(deviceID)
		return nil
	}
	b.tree.SetStatus(deviceID, status)
	return nil
}

func (b *Bridge) applyField(deviceID, key string, payload []byte) error {
	if len(payload) == 0 {
		b.tree.SetDeviceField(deviceID, key, nil)
		return nil
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("field %s of %s: %w", key, deviceID, err)
	}
	b.tree.SetDeviceField(deviceID, key, value)
	return nil
}

func (b *Bridge) applyEvent(eventID string, payload []byte) error {
	if len(payload) == 0 {
		b.tree.RemoveEvent(eventID)
		return nil
	}
	value, err := record.UnmarshalFields(payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}
	if len(value) == 0 {
		b.tree.RemoveEvent(eventID)
		return nil
	}
	b.tree.PushEvent(eventID, value)
	return nil
}

// Connect dials the broker and waits for the session.
func Connect(ctx context.Context, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true)
	client := mqtt.NewClient(opts)

	if err := waitToken(ctx, client.Connect(), 30*time.Second); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return client, nil
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
