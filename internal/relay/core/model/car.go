package model

import (
	"fmt"
	"regexp"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
)

var namePattern = regexp.MustCompile(`^[0-9a-z_]+$`)

// Car identifies a vehicle by company and car name. Both parts share the
// same lowercase pattern so they can appear in URL paths and MQTT topics
// without escaping.
type Car struct {
	Company string `json:"company_name"`
	Name    string `json:"car_name"`
}

// NewCar builds a validated Car identity.
func NewCar(company, name string) (Car, error) {
	if !namePattern.MatchString(company) {
		return Car{}, fmt.Errorf("%w: company name %q must match %s", util.ErrInvalid, company, namePattern)
	}
	if !namePattern.MatchString(name) {
		return Car{}, fmt.Errorf("%w: car name %q must match %s", util.ErrInvalid, name, namePattern)
	}
	return Car{Company: company, Name: name}, nil
}

func (c Car) String() string {
	return c.Company + "/" + c.Name
}

// AvailableCar is a connected car together with the server timestamp of the
// status that first established its presence since the last full disconnect.
type AvailableCar struct {
	Company     string `json:"company_name"`
	Name        string `json:"car_name"`
	ConnectedAt int64  `json:"connected_at"`
}

// ModuleDevices lists the devices currently connected under one module.
type ModuleDevices struct {
	ModuleID   uint32     `json:"module_id"`
	DeviceList []DeviceID `json:"device_list"`
}
