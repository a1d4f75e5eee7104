package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SessionOptions)(nil)

// SessionOptions configures the flash session itself.
type SessionOptions struct {
	// ManifestObject is the object key of the manifest inside the firmware
	// bucket.
	ManifestObject string `json:"manifest-object" mapstructure:"manifest-object"`

	// ScratchDir is the local working directory for downloaded and unpacked
	// images.
	ScratchDir string `json:"scratch-dir" mapstructure:"scratch-dir"`

	// AutoStart starts the session as soon as it reaches Ready instead of
	// waiting for the continue hook.
	AutoStart bool `json:"auto-start" mapstructure:"auto-start"`
}

// NewSessionOptions creates SessionOptions with defaults.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		ManifestObject: "manifest.json",
		ScratchDir:     "/var/lib/abflash",
		AutoStart:      true,
	}
}

// Validate validates the options.
func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.ManifestObject == "" {
		errs = append(errs, errors.New("manifest object is required"))
	}
	if o.ScratchDir == "" {
		errs = append(errs, errors.New("scratch dir is required"))
	}
	return errs
}

// AddFlags adds flags for SessionOptions to the specified FlagSet.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ManifestObject, "session.manifest-object", o.ManifestObject, "Object key of the firmware manifest in the store.")
	fs.StringVar(&o.ScratchDir, "session.scratch-dir", o.ScratchDir, "Local working directory for image downloads.")
	fs.BoolVar(&o.AutoStart, "session.auto-start", o.AutoStart, "Start flashing automatically once the session is ready.")
}
