package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
)

type fakeToken struct {
	err      error
	complete bool
	done     chan struct{}
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, complete: complete, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	messages     []published
	publishErr   error
	stall        bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return newToken(c.publishErr, !c.stall)
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) {
	c.disconnected = true
	c.connected = false
}

func newTestPublisher(client *fakeClient) *Publisher {
	return newPublisher(client, "facesync", zerolog.Nop())
}

func TestHandleEvent_Topics(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p.HandleEvent(syncer.Event{Type: syncer.EventRunStarted, RunID: "r1", Time: now, Message: "Sync initiated..."})
	p.HandleEvent(syncer.Event{
		Type: syncer.EventProgress, RunID: "r1", Time: now,
		Progress: &syncer.Progress{Person: "Alice", Processed: 1, Total: 4, Message: "Processing Alice: 1/4 faces (25%)"},
	})
	p.HandleEvent(syncer.Event{
		Type: syncer.EventFace, RunID: "r1", Time: now,
		Face: &syncer.FaceOutcome{FaceID: "f1", PersonID: "p1", Person: "Alice", Result: syncer.FaceTrained},
	})
	p.HandleEvent(syncer.Event{Type: syncer.EventLog, RunID: "r1", Message: "INFO: ignored"})
	p.HandleEvent(syncer.Event{
		Type: syncer.EventRunFinished, RunID: "r1", Time: now,
		Summary: &status.RunSummary{
			RunID: "r1", Status: status.OutcomeSuccess, Trained: 1,
			StartedAt: now.Add(-2 * time.Second), FinishedAt: now,
		},
	})

	require.Len(t, client.messages, 4)
	assert.Equal(t, "facesync/sync_progress", client.messages[0].topic)
	assert.Equal(t, "facesync/sync_progress", client.messages[1].topic)
	assert.Equal(t, "facesync/sync_face", client.messages[2].topic)
	assert.Equal(t, "facesync/sync_summary", client.messages[3].topic)
	for _, m := range client.messages {
		assert.Equal(t, byte(1), m.qos)
		assert.False(t, m.retained)
	}

	var progress ProgressDTO
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &progress))
	assert.Equal(t, "Alice", progress.CurrentPerson)
	assert.Equal(t, 1, progress.ProcessedFaces)
	assert.Equal(t, 4, progress.TotalFaces)
	assert.True(t, progress.InProgress)

	var face FaceDTO
	require.NoError(t, json.Unmarshal(client.messages[2].payload, &face))
	assert.Equal(t, "trained", face.Result)

	var summary SummaryDTO
	require.NoError(t, json.Unmarshal(client.messages[3].payload, &summary))
	assert.Equal(t, "Success", summary.Status)
	assert.Equal(t, 1, summary.Trained)
	assert.InDelta(t, 2.0, summary.DurationSec, 0.001)
}

func TestHandleEvent_NotConnectedDrops(t *testing.T) {
	client := &fakeClient{connected: false}
	p := newTestPublisher(client)

	p.HandleEvent(syncer.Event{Type: syncer.EventRunStarted, RunID: "r1"})
	assert.Empty(t, client.messages)
}

func TestPublish_Errors(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: errors.New("broker said no")}
	p := newTestPublisher(client)
	err := p.PublishJSON(TopicSummary, map[string]string{"a": "b"}, false)
	assert.EqualError(t, err, "broker said no")

	client = &fakeClient{connected: true, stall: true}
	p = newTestPublisher(client)
	err = p.PublishJSON(TopicSummary, map[string]string{"a": "b"}, false)
	assert.EqualError(t, err, "publish timeout")
}

func TestClose_PublishesOffline(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)

	p.Close()

	require.Len(t, client.messages, 1)
	assert.Equal(t, "facesync/status", client.messages[0].topic)
	assert.Equal(t, "offline", string(client.messages[0].payload))
	assert.True(t, client.messages[0].retained)
	assert.True(t, client.disconnected)

	var nilPublisher *Publisher
	nilPublisher.Close()
}

func TestTopic_NoPrefix(t *testing.T) {
	p := newPublisher(&fakeClient{}, "", zerolog.Nop())
	assert.Equal(t, "sync_face", p.topic(TopicFace))
}

func TestWaitToken(t *testing.T) {
	assert.NoError(t, waitToken(context.Background(), newToken(nil, true), time.Second))
	assert.EqualError(t, waitToken(context.Background(), newToken(errors.New("refused"), true), time.Second), "refused")
	assert.EqualError(t, waitToken(context.Background(), newToken(nil, false), 10*time.Millisecond), "timed out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitToken(ctx, newToken(nil, false), time.Second), context.Canceled)
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.MQTTConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
