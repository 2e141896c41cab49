package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
)

// MQTTConfig names the broker and topics an MQTTProvider listens on
type MQTTConfig struct {
	Broker        string
	ClientID      string
	TopicPosition string
	TopicHeading  string
}

// MQTTProvider follows position fixes and headings published on a broker,
// e.g. by a GPS producer running on another board. Positions are JSON
// models.Position; headings are a bare number or {"heading": n}.
type MQTTProvider struct {
	cfg    MQTTConfig
	logger *zap.Logger
	feed   *feed

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTProvider creates a provider; the broker is contacted on RequestPermission
func NewMQTTProvider(cfg MQTTConfig, logger *zap.Logger) *MQTTProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTProvider{cfg: cfg, logger: logger, feed: newFeed()}
}

// RequestPermission connects and subscribes. An unreachable broker counts as
// a denied permission.
func (p *MQTTProvider) RequestPermission(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return fmt.Errorf("%w: connect %s: %w", ErrPermissionDenied, p.cfg.Broker, err)
	}
	p.logger.Info("connected to MQTT broker", zap.String("broker", p.cfg.Broker))

	subs := map[string]mqtt.MessageHandler{
		p.cfg.TopicPosition: func(_ mqtt.Client, msg mqtt.Message) { p.handlePosition(msg.Payload()) },
		p.cfg.TopicHeading:  func(_ mqtt.Client, msg mqtt.Message) { p.handleHeading(msg.Payload()) },
	}
	for topic, handler := range subs {
		if err := waitToken(ctx, client.Subscribe(topic, 0, handler)); err != nil {
			client.Disconnect(250)
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		p.logger.Info("subscribed to MQTT topic", zap.String("topic", topic))
	}

	p.client = client
	return nil
}

func (p *MQTTProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return p.feed.currentPosition(ctx)
}

func (p *MQTTProvider) SubscribePosition(ctx context.Context, fn func(models.Position)) error {
	return p.feed.subscribePosition(ctx, fn)
}

func (p *MQTTProvider) SubscribeHeading(ctx context.Context, fn func(float64)) error {
	return p.feed.subscribeHeading(ctx, fn)
}

// Close disconnects from the broker
func (p *MQTTProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}

func (p *MQTTProvider) handlePosition(payload []byte) {
	var pos models.Position
	if err := json.Unmarshal(payload, &pos); err != nil {
		p.logger.Warn("position payload unmarshal error", zap.Error(err))
		return
	}
	if pos.Time.IsZero() {
		pos.Time = time.Now().UTC()
	}
	p.feed.publishPosition(pos)
}

func (p *MQTTProvider) handleHeading(payload []byte) {
	payload = bytes.TrimSpace(payload)
	if h, err := strconv.ParseFloat(string(payload), 64); err == nil {
		p.feed.publishHeading(h)
		return
	}

	var msg struct {
		Heading *float64 `json:"heading"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Heading == nil {
		p.logger.Warn("heading payload not understood", zap.ByteString("payload", payload))
		return
	}
	p.feed.publishHeading(*msg.Heading)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
