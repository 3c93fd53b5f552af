package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ExchangeOptions)(nil)

// ExchangeOptions configures the long-poll wait timeouts, one per wait
// queue. They are independent: a fleet dashboard may want snappy car
// discovery while vehicles hold command polls open longer.
type ExchangeOptions struct {
	// StatusWaitTimeout bounds waiting list-status requests.
	StatusWaitTimeout time.Duration `json:"status-wait-timeout" mapstructure:"status-wait-timeout"`

	// CommandWaitTimeout bounds waiting list-command requests.
	CommandWaitTimeout time.Duration `json:"command-wait-timeout" mapstructure:"command-wait-timeout"`

	// CarWaitTimeout bounds waiting available-cars requests.
	CarWaitTimeout time.Duration `json:"car-wait-timeout" mapstructure:"car-wait-timeout"`
}

// NewExchangeOptions creates an ExchangeOptions object with default parameters.
func NewExchangeOptions() *ExchangeOptions {
	return &ExchangeOptions{
		StatusWaitTimeout:  2 * time.Second,
		CommandWaitTimeout: 2 * time.Second,
		CarWaitTimeout:     2 * time.Second,
	}
}

// Validate checks that every timeout is positive; there is no
// indefinite-wait mode.
func (o *ExchangeOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.StatusWaitTimeout <= 0 {
		errs = append(errs, errors.New("status wait timeout must be positive"))
	}
	if o.CommandWaitTimeout <= 0 {
		errs = append(errs, errors.New("command wait timeout must be positive"))
	}
	if o.CarWaitTimeout <= 0 {
		errs = append(errs, errors.New("car wait timeout must be positive"))
	}
	return errs
}

// AddFlags adds the exchange flags to the specified FlagSet.
func (o *ExchangeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.StatusWaitTimeout, "exchange.status-timeout", o.StatusWaitTimeout, "Long-poll timeout for status listing.")
	fs.DurationVar(&o.CommandWaitTimeout, "exchange.command-timeout", o.CommandWaitTimeout, "Long-poll timeout for command listing.")
	fs.DurationVar(&o.CarWaitTimeout, "exchange.car-timeout", o.CarWaitTimeout, "Long-poll timeout for car availability.")
}
