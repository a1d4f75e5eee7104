// Package app builds the abflash-agent command.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abflash-io/abflash/cmd/abflash-agent/app/options"
	"github.com/abflash-io/abflash/pkg/log"
)

const (
	commandName = "abflash-agent"
	commandDesc = `The abflash agent flashes a dual-slot device through one supervised
session: it downloads and unpacks the firmware images named by the store
manifest, writes them to the inactive slot, switches the boot pointer and
factory-resets the device. Session state is published over HTTP and,
optionally, MQTT.`
)

// NewCommand creates the root cobra command of the agent.
func NewCommand() *cobra.Command {
	opts := options.NewAgentOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          commandName,
		Short:        "Launch the A/B firmware flash agent",
		Long:         commandDesc,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd, configFile, opts); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the agent configuration file.")
	opts.AddFlags(cmd.Flags())
	return cmd
}

// loadConfig layers the optional config file under the command line. The
// dotted flag names double as nested viper keys, so explicitly set flags
// win over file values and file values win over flag defaults.
func loadConfig(cmd *cobra.Command, configFile string, opts *options.AgentOptions) error {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	return nil
}

func run(opts *options.AgentOptions) error {
	if errs := opts.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Init(opts.Log)

	printSummary(opts)

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	agent, err := cfg.NewAgent()
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return agent.Run(context.Background())
}

// printSummary prints the effective configuration at startup.
func printSummary(opts *options.AgentOptions) {
	broker := opts.MqttOptions.Broker
	if broker == "" {
		broker = "(bridge disabled)"
	}

	table := uitable.New()
	table.AddRow("SETTING", "VALUE")
	table.AddRow("device path", opts.DeviceOptions.Path)
	table.AddRow("store endpoint", opts.S3Options.Endpoint)
	table.AddRow("store bucket", opts.S3Options.BucketName)
	table.AddRow("manifest object", opts.SessionOptions.ManifestObject)
	table.AddRow("scratch dir", opts.SessionOptions.ScratchDir)
	table.AddRow("auto start", fmt.Sprintf("%t", opts.SessionOptions.AutoStart))
	table.AddRow("http addr", opts.HttpOptions.Addr)
	table.AddRow("mqtt broker", broker)
	fmt.Println(table)
}
