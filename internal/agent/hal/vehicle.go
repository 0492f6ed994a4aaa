// Package hal reaches the vehicle platform: identity discovery and a
// simulated signal feed for benches without a vehicle bus.
package hal

import (
	"os"
	"strings"

	"github.com/autopeer-io/cartrack/pkg/log"
)

const (
	EnvVehicleID = "CARTRACK_VEHICLE_ID"
	VINFile      = "/etc/cartrack/vin"
	FallbackID   = "cartrack-dev-vehicle"
)

// DiscoverVehicleID resolves the vehicle identity from, in order, the
// override, the environment, the VIN file, then the host name.
func DiscoverVehicleID(override string) string {
	return discover(override, os.Getenv, VINFile, os.Hostname)
}

func discover(override string, getenv func(string) string, vinFile string, hostname func() (string, error)) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}

	if id := strings.TrimSpace(getenv(EnvVehicleID)); id != "" {
		log.Info("VehicleID detected from env", "id", id)
		return id
	}

	if content, err := os.ReadFile(vinFile); err == nil {
		if id := strings.TrimSpace(string(content)); id != "" {
			log.Info("VehicleID detected from file", "id", id, "path", vinFile)
			return id
		}
	}

	if host, err := hostname(); err == nil && host != "" {
		id := "cartrack-" + host
		log.Warn("No VehicleID configured, derived from host name", "id", id)
		return id
	}

	log.Warn("No VehicleID configured, using fallback", "id", FallbackID)
	return FallbackID
}
