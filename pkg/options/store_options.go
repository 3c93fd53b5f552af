package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

// StoreOptions configures the durable message log.
type StoreOptions struct {
	// Path is the sqlite database file.
	Path string `json:"path" mapstructure:"path"`

	// Retention is how long messages are kept before being purged.
	Retention time.Duration `json:"retention" mapstructure:"retention"`

	// SweepInterval is the period of the retention sweep.
	SweepInterval time.Duration `json:"sweep-interval" mapstructure:"sweep-interval"`
}

// NewStoreOptions creates a StoreOptions object with default parameters.
func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Path:          "fleethub.db",
		Retention:     time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// Validate checks the retention configuration.
func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}
	if o.Retention <= 0 {
		errs = append(errs, errors.New("store retention must be positive"))
	}
	if o.SweepInterval <= 0 {
		errs = append(errs, errors.New("store sweep interval must be positive"))
	}
	return errs
}

// AddFlags adds the message store flags to the specified FlagSet.
func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "store.path", o.Path, "Path of the sqlite database file.")
	fs.DurationVar(&o.Retention, "store.retention", o.Retention, "How long messages are retained before being purged.")
	fs.DurationVar(&o.SweepInterval, "store.sweep-interval", o.SweepInterval, "Interval between retention sweeps.")
}
