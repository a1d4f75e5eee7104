package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DeviceOptions)(nil)

// DeviceOptions configures the point-to-point device driver.
type DeviceOptions struct {
	// Path is the directory the driver treats as the device: the attach
	// marker and partition files live under it.
	Path string `json:"path" mapstructure:"path"`

	// ConnectTimeoutSeconds bounds WaitForConnect. Zero waits forever.
	ConnectTimeoutSeconds int `json:"connect-timeout-seconds" mapstructure:"connect-timeout-seconds"`
}

// NewDeviceOptions creates DeviceOptions with defaults.
func NewDeviceOptions() *DeviceOptions {
	return &DeviceOptions{
		Path: "/var/run/abflash/device",
	}
}

// Validate validates the options.
func (o *DeviceOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.Path == "" {
		errs = append(errs, errors.New("device path is required"))
	}
	return errs
}

// AddFlags adds flags for DeviceOptions to the specified FlagSet.
func (o *DeviceOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "device.path", o.Path, "Directory backing the attached device.")
	fs.IntVar(&o.ConnectTimeoutSeconds, "device.connect-timeout-seconds", o.ConnectTimeoutSeconds, "Seconds to wait for device attach (0 = forever).")
}
