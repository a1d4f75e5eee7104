// Package options aggregates the flag groups of the abflash-agent binary.
package options

import (
	"github.com/spf13/pflag"

	"github.com/abflash-io/abflash/internal/agent"
	"github.com/abflash-io/abflash/pkg/log"
	"github.com/abflash-io/abflash/pkg/options"
)

// AgentOptions carries every configurable group of the agent.
type AgentOptions struct {
	DeviceOptions  *options.DeviceOptions  `json:"device" mapstructure:"device"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	HttpOptions    *options.HttpOptions    `json:"http" mapstructure:"http"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	SessionOptions *options.SessionOptions `json:"session" mapstructure:"session"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

// NewAgentOptions creates AgentOptions with defaults for every group.
func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		DeviceOptions:  options.NewDeviceOptions(),
		S3Options:      options.NewS3Options(),
		HttpOptions:    options.NewHttpOptions(),
		MqttOptions:    options.NewMqttOptions(),
		SessionOptions: options.NewSessionOptions(),
		Log:            log.NewOptions(),
	}
}

// AddFlags registers the flags of every group on fs.
func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	o.DeviceOptions.AddFlags(fs)
	o.S3Options.AddFlags(fs)
	o.HttpOptions.AddFlags(fs)
	o.MqttOptions.AddFlags(fs)
	o.SessionOptions.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Validate collects validation errors from every group.
func (o *AgentOptions) Validate() []error {
	errs := []error{}
	errs = append(errs, o.DeviceOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errs
}

// Config builds the agent configuration from the validated options.
func (o *AgentOptions) Config() (*agent.Config, error) {
	return &agent.Config{
		DeviceOptions:  o.DeviceOptions,
		S3Options:      o.S3Options,
		HttpOptions:    o.HttpOptions,
		MqttOptions:    o.MqttOptions,
		SessionOptions: o.SessionOptions,
	}, nil
}
