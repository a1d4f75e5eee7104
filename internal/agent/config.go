package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/abflash-io/abflash/internal/agent/server"
	"github.com/abflash-io/abflash/internal/flasher/device"
	"github.com/abflash-io/abflash/internal/flasher/session"
	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/flasher/store"
	"github.com/abflash-io/abflash/internal/flasher/worker"
	"github.com/abflash-io/abflash/pkg/mqtt"
	mqtttopic "github.com/abflash-io/abflash/pkg/mqtt/topic"
	"github.com/abflash-io/abflash/pkg/options"
)

// Config collects the validated option groups the agent is built from.
type Config struct {
	DeviceOptions  *options.DeviceOptions
	S3Options      *options.S3Options
	HttpOptions    *options.HttpOptions
	MqttOptions    *options.MqttOptions
	SessionOptions *options.SessionOptions
}

// NewAgent assembles the agent: device driver, firmware store, image
// worker, flash session, HTTP server and the optional MQTT bridge.
func (cfg *Config) NewAgent() (*Agent, error) {
	st := state.Default()

	drv := device.WithConnectTimeout(
		device.NewFileDriver(cfg.DeviceOptions.Path),
		time.Duration(cfg.DeviceOptions.ConnectTimeoutSeconds)*time.Second,
	)

	sto, err := store.NewMinIOStore(cfg.S3Options)
	if err != nil {
		return nil, fmt.Errorf("failed to create firmware store: %w", err)
	}

	wrk := worker.New(sto, cfg.SessionOptions.ScratchDir)

	sess := session.New(session.Config{
		State:       st,
		Driver:      drv,
		Worker:      wrk,
		Store:       sto,
		ManifestKey: cfg.SessionOptions.ManifestObject,
		AutoStart:   cfg.SessionOptions.AutoStart,
	})

	a := &Agent{
		st:   st,
		sess: sess,
		wrk:  wrk,
		srv:  server.New(cfg.HttpOptions, st),
	}

	if cfg.MqttOptions.Enabled() {
		a.bridge, err = cfg.newBridge(st)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt bridge: %w", err)
		}
	}

	return a, nil
}

func (cfg *Config) newBridge(st *state.Session) (*Bridge, error) {
	topics := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "abflash-agent"
	}

	mqttCfg := cfg.MqttOptions.ToClientConfig()
	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "abflash-" + host
	}

	// The broker publishes this retained marker if we drop off unexpectedly.
	offline, _ := json.Marshal(onlineStatus{Online: false})
	mqttCfg.WillTopic = topics.Online(host)
	mqttCfg.WillPayload = offline
	mqttCfg.WillQoS = 1
	mqttCfg.WillRetain = true

	client, err := mqtt.NewClient(mqttCfg)
	if err != nil {
		return nil, err
	}

	return NewBridge(client, topics, st, host), nil
}
