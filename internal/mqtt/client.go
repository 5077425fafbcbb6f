// Package mqtt connects the capture pipeline to an MQTT broker: remote
// capture requests come in on one topic, stored-record announcements go out
// on another.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"snapapi/internal/config"
	"snapapi/internal/model"
	"snapapi/internal/trigger"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	qosAtLeastOnce = 1
)

var ErrTimeout = errors.New("mqtt operation timed out")

// Connect dials the broker with automatic reconnection enabled.
func Connect(cfg config.MQTTConfig, log *zap.Logger) (paho.Client, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		log.Info("mqtt connected", zap.String("broker", broker), zap.String("client_id", cfg.ClientID))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost, reconnecting", zap.String("broker", broker), zap.Error(err))
	}

	client := paho.NewClient(opts)
	if err := wait(client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

func wait(tok paho.Token, timeout time.Duration) error {
	if !tok.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return tok.Error()
}

// Source submits one capture request per message on a topic. The payload
// is ignored. Messages pass through the debouncer when one is set.
type Source struct {
	client    paho.Client
	topic     string
	debouncer *trigger.Debouncer
	log       *zap.Logger
	now       func() time.Time
}

var _ trigger.Source = (*Source)(nil)

func NewSource(client paho.Client, topic string, debouncer *trigger.Debouncer, log *zap.Logger) *Source {
	return &Source{client: client, topic: topic, debouncer: debouncer, log: log, now: time.Now}
}

// Run subscribes and blocks until ctx is done. Message callbacks run on the
// paho router goroutine and only call the non-blocking Submit.
func (s *Source) Run(ctx context.Context, sink trigger.Sink) error {
	handler := func(_ paho.Client, msg paho.Message) {
		at := s.now()
		if !s.debouncer.Accept(at) {
			s.log.Debug("remote trigger debounced", zap.String("topic", msg.Topic()))
			return
		}
		sink.Submit(trigger.Request{Reason: trigger.ReasonRemote, At: at})
	}

	if err := wait(s.client.Subscribe(s.topic, qosAtLeastOnce, handler), connectTimeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.log.Info("listening for remote triggers", zap.String("topic", s.topic))

	<-ctx.Done()

	if err := wait(s.client.Unsubscribe(s.topic), publishTimeout); err != nil {
		s.log.Warn("unsubscribe failed", zap.String("topic", s.topic), zap.Error(err))
	}
	return nil
}

// Announcer publishes a JSON summary of each stored record.
type Announcer struct {
	client paho.Client
	topic  string
}

func NewAnnouncer(client paho.Client, topic string) *Announcer {
	return &Announcer{client: client, topic: topic}
}

func (a *Announcer) Announce(ctx context.Context, s model.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if err := wait(a.client.Publish(a.topic, 0, false, payload), timeout); err != nil {
		return fmt.Errorf("publish %s: %w", a.topic, err)
	}
	return nil
}
