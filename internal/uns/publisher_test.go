package uns

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// fakeToken completes immediately.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// published records one Publish call.
type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeConn satisfies the conn interface and records every publish.
type fakeConn struct {
	calls      []published
	publishErr error
	connected  bool
}

func (f *fakeConn) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.calls = append(f.calls, published{
		topic:   topic,
		qos:     qos,
		retain:  retained,
		payload: payload.([]byte),
	})
	return &fakeToken{err: f.publishErr}
}

func (f *fakeConn) Disconnect(quiesce uint) { f.connected = false }
func (f *fakeConn) IsConnected() bool       { return f.connected }

func newTestPublisher(f *fakeConn) *Publisher {
	return &Publisher{
		conn:     f,
		root:     Root{Site: "brewery", Area: "cellar"},
		qos:      1,
		clientID: "coordinator",
	}
}

func TestTaskStatus(t *testing.T) {
	fake := &fakeConn{connected: true}
	p := newTestPublisher(fake)

	task := taskboard.NewTask("calibrate glycol sensor", taskboard.TaskTypeMonitor, taskboard.PriorityHigh)
	task.Status = taskboard.StatusInProgress
	task.ClaimedBy = "server-claude"

	require.NoError(t, p.TaskStatus(task))
	require.Len(t, fake.calls, 1)

	call := fake.calls[0]
	assert.Equal(t, "brewery/cellar/coordination/tasks/"+task.ID+"/status", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.True(t, call.retain)

	var doc TaskStatusPayload
	require.NoError(t, json.Unmarshal(call.payload, &doc))
	assert.Equal(t, task.ID, doc.ID)
	assert.Equal(t, "in_progress", doc.Status)
	assert.Equal(t, "server-claude", doc.Instance)
	assert.NotEmpty(t, doc.Ts)
}

func TestInstanceAvailability(t *testing.T) {
	fake := &fakeConn{connected: true}
	p := newTestPublisher(fake)

	require.NoError(t, p.InstanceAvailability("mac-claude", true))
	require.NoError(t, p.InstanceAvailability("mac-claude", false))
	require.Len(t, fake.calls, 2)

	assert.Equal(t, "brewery/cellar/coordination/instances/mac-claude/availability", fake.calls[0].topic)
	assert.Equal(t, "ONLINE", string(fake.calls[0].payload))
	assert.Equal(t, "OFFLINE", string(fake.calls[1].payload))
	assert.True(t, fake.calls[0].retain)
}

func TestBoardSnapshot(t *testing.T) {
	fake := &fakeConn{connected: true}
	p := newTestPublisher(fake)

	t1 := taskboard.NewTask("a", taskboard.TaskTypeBuild, taskboard.PriorityLow)
	t2 := taskboard.NewTask("b", taskboard.TaskTypeBuild, taskboard.PriorityLow)
	t2.Status = taskboard.StatusComplete
	t3 := taskboard.NewTask("c", taskboard.TaskTypeBuild, taskboard.PriorityLow)
	t3.Status = taskboard.StatusComplete

	require.NoError(t, p.BoardSnapshot("brewery", []*taskboard.Task{t1, t2, t3}))
	require.Len(t, fake.calls, 1)

	var doc BoardSnapshotPayload
	require.NoError(t, json.Unmarshal(fake.calls[0].payload, &doc))
	assert.Equal(t, "brewery", doc.Project)
	assert.Equal(t, 1, doc.Counts["pending"])
	assert.Equal(t, 2, doc.Counts["complete"])
}

func TestPublishError(t *testing.T) {
	fake := &fakeConn{connected: true, publishErr: assert.AnError}
	p := newTestPublisher(fake)

	err := p.PublishRaw("brewery/test", []byte("x"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish")
}

func TestClosePublishesOffline(t *testing.T) {
	fake := &fakeConn{connected: true}
	p := newTestPublisher(fake)

	require.NoError(t, p.Close())
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "brewery/cellar/coordination/instances/coordinator/availability", fake.calls[0].topic)
	assert.Equal(t, "OFFLINE", string(fake.calls[0].payload))
	assert.False(t, fake.connected)
}

func TestConnectValidation(t *testing.T) {
	t.Run("empty broker URL", func(t *testing.T) {
		_, err := Connect(Options{ClientID: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker URL cannot be empty")
	})

	t.Run("empty client ID", func(t *testing.T) {
		_, err := Connect(Options{BrokerURL: "tcp://localhost:1883"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client ID cannot be empty")
	})
}
