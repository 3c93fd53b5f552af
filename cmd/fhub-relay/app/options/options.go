// Package options aggregates the flag groups of the fhub-relay binary.
package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/fleethub-io/fleethub/internal/relay"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/options"
)

// RelayOptions is the full configuration surface of the relay, mirroring
// the config-file layout (http.*, mqtt.*, store.*, exchange.*, log.*).
type RelayOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	StoreOptions    *options.StoreOptions    `json:"store" mapstructure:"store"`
	ExchangeOptions *options.ExchangeOptions `json:"exchange" mapstructure:"exchange"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

// NewRelayOptions creates RelayOptions with default values.
func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		HttpOptions:     options.NewHttpOptions(),
		MqttOptions:     options.NewMqttOptions(),
		StoreOptions:    options.NewStoreOptions(),
		ExchangeOptions: options.NewExchangeOptions(),
		Log:             log.NewOptions(),
	}
}

// AddFlags registers every option group on the flag set.
func (o *RelayOptions) AddFlags(fs *pflag.FlagSet) {
	o.HttpOptions.AddFlags(fs)
	o.MqttOptions.AddFlags(fs)
	o.StoreOptions.AddFlags(fs)
	o.ExchangeOptions.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Validate runs all group validations and aggregates the failures.
func (o *RelayOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.ExchangeOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Config builds the application config from the validated options.
func (o *RelayOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		HttpOptions:     o.HttpOptions,
		MqttOptions:     o.MqttOptions,
		StoreOptions:    o.StoreOptions,
		ExchangeOptions: o.ExchangeOptions,
	}, nil
}
