package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFilter(t *testing.T) {
	assert.Equal(t, "fleet/v1/status/+/+", StatusFilter("fleet/v1"))
	assert.Equal(t, "fleet/v1/status/+/+", StatusFilter("fleet/v1/"))
}

func TestCommandTopic(t *testing.T) {
	assert.Equal(t, "fleet/v1/command/acme/truck1", CommandTopic("fleet/v1", "acme", "truck1"))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		topic       string
		wantCompany string
		wantCar     string
		wantErr     bool
	}{
		{"fleet/v1/status/acme/truck1", "acme", "truck1", false},
		{"fleet/v1/status/acme", "", "", true},
		{"fleet/v1/status/acme/truck1/extra", "", "", true},
		{"fleet/v1/status//truck1", "", "", true},
		{"fleet/v1/command/acme/truck1", "", "", true},
		{"other/status/acme/truck1", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			company, car, err := ParseStatus("fleet/v1", tt.topic)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompany, company)
			assert.Equal(t, tt.wantCar, car)
		})
	}
}
