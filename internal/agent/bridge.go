package agent

import (
	"context"
	"encoding/json"

	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/pkg/log"
	"github.com/abflash-io/abflash/pkg/mqtt"
	mqtttopic "github.com/abflash-io/abflash/pkg/mqtt/topic"
)

// onlineStatus is the retained presence marker published next to the
// session state, and the will payload for unexpected disconnects.
type onlineStatus struct {
	Online bool   `json:"online"`
	Serial string `json:"serial,omitempty"`
}

// Bridge mirrors the session state onto MQTT. Every observable change
// publishes a retained JSON snapshot, so a dashboard connecting mid-flash
// immediately sees the current state without a request/response round.
type Bridge struct {
	client mqtt.Client
	topics *mqtttopic.Builder
	st     *state.Session
	host   string
	logger log.Logger
}

// NewBridge creates a Bridge publishing st through client. host identifies
// this agent on the online topic and as the state topic fallback until a
// device serial is known.
func NewBridge(client mqtt.Client, topics *mqtttopic.Builder, st *state.Session, host string) *Bridge {
	return &Bridge{
		client: client,
		topics: topics,
		st:     st,
		host:   host,
		logger: log.WithName("bridge"),
	}
}

// Run connects to the broker and republishes the session state until the
// context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.client.Start(ctx); err != nil {
		return err
	}
	defer b.client.Disconnect(context.Background())

	if err := b.client.AwaitConnection(ctx); err != nil {
		return err
	}

	b.publishOnline(ctx, true)
	defer b.publishOnline(context.Background(), false)

	// Updates from all observables coalesce into one notify token; each
	// wakeup publishes the full current snapshot, so bursts collapse into a
	// single publish carrying the latest state.
	notify := make(chan struct{}, 1)

	stepSub := b.st.Step.Subscribe()
	defer stepSub.Cancel()
	msgSub := b.st.Message.Subscribe()
	defer msgSub.Cancel()
	progSub := b.st.Progress.Subscribe()
	defer progSub.Cancel()
	errSub := b.st.Err.Subscribe()
	defer errSub.Cancel()
	connSub := b.st.Connected.Subscribe()
	defer connSub.Cancel()
	serialSub := b.st.Serial.Subscribe()
	defer serialSub.Cancel()
	contSub := b.st.OnContinue.Subscribe()
	defer contSub.Cancel()
	retrySub := b.st.OnRetry.Subscribe()
	defer retrySub.Cancel()

	go pump(ctx, stepSub.C(), notify)
	go pump(ctx, msgSub.C(), notify)
	go pump(ctx, progSub.C(), notify)
	go pump(ctx, errSub.C(), notify)
	go pump(ctx, connSub.C(), notify)
	go pump(ctx, serialSub.C(), notify)
	go pump(ctx, contSub.C(), notify)
	go pump(ctx, retrySub.C(), notify)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-notify:
			b.publishSnapshot(ctx)
		}
	}
}

func pump[T any](ctx context.Context, ch <-chan T, notify chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}
}

// deviceID keys the state topic: the device serial once known, the agent
// host before that.
func (b *Bridge) deviceID() string {
	if serial := b.st.Serial.Get(); serial != "" {
		return serial
	}
	return b.host
}

func (b *Bridge) publishSnapshot(ctx context.Context) {
	payload, err := json.Marshal(b.st.Snapshot())
	if err != nil {
		b.logger.Error(err, "Failed to marshal session snapshot")
		return
	}

	topic := b.topics.State(b.deviceID())
	if err := b.client.Publish(ctx, topic, 1, true, payload); err != nil {
		b.logger.Error(err, "Failed to publish session state", "topic", topic)
	}
}

func (b *Bridge) publishOnline(ctx context.Context, online bool) {
	payload, _ := json.Marshal(onlineStatus{Online: online, Serial: b.st.Serial.Get()})
	if err := b.client.Publish(ctx, b.topics.Online(b.host), 1, true, payload); err != nil {
		b.logger.Error(err, "Failed to publish online status", "online", online)
	}
}
