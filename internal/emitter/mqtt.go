// Package emitter publishes rep events to an MQTT broker so dashboards and
// downstream services can follow a session live. The emitter is optional;
// sessions run unchanged without a broker.
package emitter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/idvorkin/swing-analyzer-sub004/internal/phase"
	"github.com/idvorkin/swing-analyzer-sub004/internal/rep"
)

// Config holds broker settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
}

// RepEvent is the wire payload for one sealed rep.
type RepEvent struct {
	SessionID  string        `json:"sessionId"`
	Exercise   string        `json:"exercise"`
	RepNumber  int           `json:"repNumber"`
	DurationMS int64         `json:"durationMs"`
	Phases     []phase.Phase `json:"phases"`
	SealedAt   time.Time     `json:"sealedAt"`
}

// MQTTEmitter publishes rep events.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// New creates an emitter; call Connect before publishing.
func New(cfg Config) *MQTTEmitter {
	return &MQTTEmitter{cfg: cfg}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *MQTTEmitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err, "broker", e.cfg.Broker)
	}

	e.client = mqtt.NewClient(opts)
	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}
	return nil
}

// PublishRep publishes one sealed rep. Failures are counted and logged;
// the analysis pipeline never blocks on the broker.
func (e *MQTTEmitter) PublishRep(sessionID, exercise string, r *rep.Rep) {
	e.mu.RLock()
	connected := e.connected
	e.mu.RUnlock()
	if !connected {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		return
	}

	event := RepEvent{
		SessionID:  sessionID,
		Exercise:   exercise,
		RepNumber:  r.Number,
		DurationMS: r.Duration().Milliseconds(),
		Phases:     r.History(),
		SealedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal rep event", "error", err)
		return
	}

	token := e.client.Publish(e.cfg.Topic, 0, false, payload)
	go func() {
		token.Wait()
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := token.Error(); err != nil {
			e.errors++
			slog.Warn("failed to publish rep event",
				"topic", e.cfg.Topic, "rep", r.Number, "error", err)
			return
		}
		e.published++
	}()
}

// Stats returns publish/error counters.
func (e *MQTTEmitter) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

// Close disconnects from the broker.
func (e *MQTTEmitter) Close() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
}
