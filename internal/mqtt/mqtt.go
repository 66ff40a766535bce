// Package mqtt publishes sync run events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/syncer"
)

// Topic suffixes below the configured prefix.
const (
	TopicStatus   = "status"
	TopicProgress = "sync_progress"
	TopicFace     = "sync_face"
	TopicSummary  = "sync_summary"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

const (
	qosAtLeastOnce    = 1
	connectTimeout    = 30 * time.Second
	publishTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// brokerClient is the subset of paho.Client the publisher uses.
type brokerClient interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher is a syncer.Sink that forwards run events to MQTT.
type Publisher struct {
	client         brokerClient
	prefix         string
	publishTimeout time.Duration
	logger         zerolog.Logger
}

var _ syncer.Sink = (*Publisher)(nil)

// Connect dials the broker described by cfg. A last will marks the service
// offline on unexpected disconnects and every (re)connect publishes online.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mqtt host not configured")
	}
	p := &Publisher{prefix: cfg.TopicPrefix, publishTimeout: publishTimeout, logger: logger}
	statusTopic := p.topic(TopicStatus)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetWill(statusTopic, StatusOffline, qosAtLeastOnce, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info().Str("broker", cfg.BrokerURL()).Msg("connected to MQTT broker")
		c.Publish(statusTopic, qosAtLeastOnce, true, StatusOnline)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.BrokerURL()).Msg("connection to MQTT broker lost")
	})

	client := paho.NewClient(opts)
	if err := waitToken(ctx, client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker %s: %w", cfg.BrokerURL(), err)
	}
	p.client = client
	return p, nil
}

// newPublisher wraps an existing client.
func newPublisher(client brokerClient, prefix string, logger zerolog.Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, publishTimeout: publishTimeout, logger: logger}
}

func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "/" + suffix
}

// HandleEvent publishes progress, per-face and summary events. Log events
// are not forwarded. Publish errors are logged and never block the run for
// longer than the publish timeout.
func (p *Publisher) HandleEvent(ev syncer.Event) {
	var (
		suffix  string
		payload any
	)
	switch ev.Type {
	case syncer.EventRunStarted, syncer.EventProgress:
		suffix, payload = TopicProgress, progressDTO(ev)
	case syncer.EventFace:
		if ev.Face == nil {
			return
		}
		suffix, payload = TopicFace, faceDTO(ev)
	case syncer.EventRunFinished:
		suffix, payload = TopicSummary, summaryDTO(ev)
	default:
		return
	}

	if err := p.PublishJSON(suffix, payload, false); err != nil {
		p.logger.Warn().Err(err).Str("topic", p.topic(suffix)).Msg("failed to publish MQTT message")
	}
}

// PublishJSON marshals payload and publishes it below the prefix.
func (p *Publisher) PublishJSON(suffix string, payload any, retained bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload: %w", err)
	}
	return p.publish(p.topic(suffix), data, retained)
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	if !p.client.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}
	token := p.client.Publish(topic, qosAtLeastOnce, retained, payload)
	if !token.WaitTimeout(p.publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// Close publishes the offline status and disconnects.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	if p.client.IsConnected() {
		if err := p.publish(p.topic(TopicStatus), []byte(StatusOffline), true); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish offline status")
		}
	}
	p.client.Disconnect(disconnectQuiesce)
}
