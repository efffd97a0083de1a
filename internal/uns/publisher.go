package uns

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/slimstrongarm/industrial-iot-stack-sub002/pkg/taskboard"
)

// connectTimeout bounds how long we wait for the broker on startup and for
// each publish acknowledgement.
const connectTimeout = 10 * time.Second

// conn is the slice of the paho client the publisher actually uses.
// Narrowing the dependency keeps the publisher testable without a broker.
type conn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Options configures a Publisher.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	Root      Root
}

// Publisher writes coordination payloads into the UNS.
type Publisher struct {
	conn     conn
	root     Root
	qos      byte
	clientID string
}

// TaskStatusPayload is the JSON document published per task.
type TaskStatusPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Instance string `json:"instance,omitempty"`
	Ts       string `json:"ts"`
}

// BoardSnapshotPayload is the JSON document summarising the whole board.
type BoardSnapshotPayload struct {
	Project string         `json:"project"`
	Counts  map[string]int `json:"counts"`
	Ts      string         `json:"ts"`
}

// Connect dials the broker and returns a live publisher. A last-will marks the
// client's own availability topic OFFLINE if the connection drops; the matching
// ONLINE birth message is published (retained) on success.
func Connect(opts Options) (*Publisher, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("broker URL cannot be empty")
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("client ID cannot be empty")
	}

	willTopic := opts.Root.AvailabilityTopic(opts.ClientID)

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetBinaryWill(willTopic, []byte("OFFLINE"), opts.QoS, true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.BrokerURL, err)
	}

	p := &Publisher{conn: client, root: opts.Root, qos: opts.QoS, clientID: opts.ClientID}

	if err := p.publish(willTopic, []byte("ONLINE"), true); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("failed to publish birth message: %w", err)
	}

	return p, nil
}

// Connected reports whether the underlying client currently holds a broker
// connection. Used by the coordinator's health endpoint.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close publishes OFFLINE on the availability topic and disconnects.
// Mirrors the will so a clean shutdown looks the same as a crash.
func (p *Publisher) Close() error {
	_ = p.publish(p.root.AvailabilityTopic(p.clientID), []byte("OFFLINE"), true)
	p.conn.Disconnect(250)
	return nil
}

// PublishJSON marshals v and publishes it on the given topic.
func (p *Publisher) PublishJSON(topic string, v any, retain bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	return p.publish(topic, payload, retain)
}

// PublishRaw publishes an already-encoded payload on the given topic.
func (p *Publisher) PublishRaw(topic string, payload []byte, retain bool) error {
	return p.publish(topic, payload, retain)
}

// TaskStatus publishes the status document for one task (retained so late
// subscribers see the current state).
func (p *Publisher) TaskStatus(t *taskboard.Task) error {
	doc := TaskStatusPayload{
		ID:       t.ID,
		Title:    t.Title,
		Status:   string(t.Status),
		Instance: t.ClaimedBy,
		Ts:       time.Now().UTC().Format(time.RFC3339),
	}
	return p.PublishJSON(p.root.TaskStatusTopic(t.ID), doc, true)
}

// InstanceAvailability publishes a retained ONLINE/OFFLINE marker for an instance.
func (p *Publisher) InstanceAvailability(instanceName string, online bool) error {
	payload := []byte("OFFLINE")
	if online {
		payload = []byte("ONLINE")
	}
	return p.publish(p.root.AvailabilityTopic(instanceName), payload, true)
}

// BoardSnapshot publishes the per-status task counts for the whole board.
func (p *Publisher) BoardSnapshot(project string, tasks []*taskboard.Task) error {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[string(t.Status)]++
	}
	doc := BoardSnapshotPayload{
		Project: project,
		Counts:  counts,
		Ts:      time.Now().UTC().Format(time.RFC3339),
	}
	return p.PublishJSON(p.root.BoardSnapshotTopic(), doc, true)
}

func (p *Publisher) publish(topic string, payload []byte, retain bool) error {
	if topic == "" || payload == nil {
		return nil
	}

	token := p.conn.Publish(topic, p.qos, retain, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
