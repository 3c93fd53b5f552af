package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0.0.0.0:8080"))
	assert.NoError(t, ValidateAddress(":8080"))
	assert.Error(t, ValidateAddress("localhost"))
	assert.Error(t, ValidateAddress(""))
}

func TestDefaultsAreValid(t *testing.T) {
	assert.Empty(t, NewHttpOptions().Validate())
	assert.Empty(t, NewMqttOptions().Validate())
	assert.Empty(t, NewStoreOptions().Validate())
	assert.Empty(t, NewExchangeOptions().Validate())
}

func TestStoreOptionsValidate(t *testing.T) {
	o := NewStoreOptions()
	o.Path = ""
	o.Retention = 0
	assert.Len(t, o.Validate(), 2)
}

func TestExchangeOptionsValidate(t *testing.T) {
	o := NewExchangeOptions()
	o.CarWaitTimeout = 0
	assert.Len(t, o.Validate(), 1)
}

func TestMqttOptionsEnabled(t *testing.T) {
	o := NewMqttOptions()
	assert.False(t, o.Enabled(), "no broker, MQTT stays off")

	o.Broker = "tls://broker.example.com:8883"
	assert.True(t, o.Enabled())
	assert.Empty(t, o.Validate())
}
