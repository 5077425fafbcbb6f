package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapapi/internal/model"
	"snapapi/internal/trigger"
)

type doneToken struct {
	err      error
	complete bool
}

func (t doneToken) Wait() bool                     { return t.complete }
func (t doneToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.complete {
		close(ch)
	}
	return ch
}

type fakeMessage struct {
	paho.Message
	topic string
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return nil }

// fakeClient implements the parts of paho.Client the package uses.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	handler      paho.MessageHandler
	subscribed   chan struct{}
	unsubscribed bool
	subErr       error
	published    []publishCall
	pubToken     doneToken
}

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(chan struct{}), pubToken: doneToken{complete: true}}
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return doneToken{complete: true, err: c.subErr}
	}
	c.handler = cb
	close(c.subscribed)
	return doneToken{complete: true}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	c.unsubscribed = true
	c.mu.Unlock()
	return doneToken{complete: true}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.pubToken
}

func (c *fakeClient) deliver(topic string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, fakeMessage{topic: topic})
}

type countingSink struct {
	mu   sync.Mutex
	reqs []trigger.Request
}

func (s *countingSink) Submit(r trigger.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, r)
	return true
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func TestSource_SubmitsDebouncedRemoteTriggers(t *testing.T) {
	client := newFakeClient()
	src := NewSource(client, "snapapi/capture", trigger.NewDebouncer(time.Second), zap.NewNop())

	base := time.Unix(1700000000, 0)
	var clock time.Time
	src.now = func() time.Time { return clock }

	sink := &countingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	select {
	case <-client.subscribed:
	case <-time.After(time.Second):
		t.Fatal("source never subscribed")
	}

	for _, offset := range []time.Duration{0, 200 * time.Millisecond, 1200 * time.Millisecond} {
		clock = base.Add(offset)
		client.deliver("snapapi/capture")
	}
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, trigger.ReasonRemote, sink.reqs[0].Reason)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, client.unsubscribed)
}

func TestSource_SubscribeError(t *testing.T) {
	client := newFakeClient()
	client.subErr = errors.New("not authorized")
	src := NewSource(client, "snapapi/capture", nil, zap.NewNop())

	err := src.Run(context.Background(), &countingSink{})
	assert.ErrorContains(t, err, "not authorized")
}

func TestAnnouncer(t *testing.T) {
	client := newFakeClient()
	a := NewAnnouncer(client, "snapapi/images")

	s := model.Summary{ID: "1700000000", Timestamp: 1700000000, MimeType: model.MimeJPEG, Metadata: model.Metadata{Lux: model.Int64(120)}}
	require.NoError(t, a.Announce(context.Background(), s))

	require.Len(t, client.published, 1)
	assert.Equal(t, "snapapi/images", client.published[0].topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.published[0].payload, &got))
	assert.Equal(t, "1700000000", got["id"])
	assert.Equal(t, float64(120), got["lux"])
	assert.NotContains(t, got, "image_data")
}

func TestAnnouncer_Timeout(t *testing.T) {
	client := newFakeClient()
	client.pubToken = doneToken{complete: false}
	a := NewAnnouncer(client, "snapapi/images")

	err := a.Announce(context.Background(), model.Summary{ID: "1"})
	assert.ErrorIs(t, err, ErrTimeout)
}
