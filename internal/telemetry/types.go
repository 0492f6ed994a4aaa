// Package telemetry folds vehicle property changes into snapshots and keeps
// the latest batch of location fixes.
package telemetry

import (
	"fmt"
)

// Property names carried by PropertyEvent.
const (
	PropertyOutsideTemperature = "outside_temperature"
	PropertyBatteryLevel       = "battery_level"
	PropertyBatteryCapacity    = "battery_capacity"
	PropertySpeed              = "speed"
	PropertyRangeRemaining     = "range_remaining"
	PropertyGear               = "gear"
	PropertyNightMode          = "night_mode"
)

// Reading is an immutable snapshot of vehicle signals. A nil field means the
// signal has not been reported. Timestamp is in unix milliseconds.
type Reading struct {
	OutsideTemperature *float64 `json:"outsideTemperature,omitempty"`
	BatteryLevel       *float64 `json:"batteryLevel,omitempty"`
	BatteryCapacity    *float64 `json:"batteryCapacity,omitempty"`
	Speed              *float64 `json:"speed,omitempty"`
	RangeRemaining     *float64 `json:"rangeRemaining,omitempty"`
	Gear               *string  `json:"gear,omitempty"`
	NightMode          *bool    `json:"nightMode,omitempty"`
	Timestamp          int64    `json:"timestamp"`
}

// Empty is the snapshot with no signal reported.
var Empty = Reading{}

// PropertyEvent is a single property change reported by the vehicle.
// Value is a float64, string or bool depending on Property.
type PropertyEvent struct {
	Property  string `json:"property"`
	Value     any    `json:"value"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// With returns a copy of r with the field named by ev overwritten and the
// timestamp set to ts. r is left untouched on error.
func (r Reading) With(ev PropertyEvent, ts int64) (Reading, error) {
	next := r
	switch ev.Property {
	case PropertyOutsideTemperature, PropertyBatteryLevel, PropertyBatteryCapacity,
		PropertySpeed, PropertyRangeRemaining:
		f, ok := toFloat(ev.Value)
		if !ok {
			return r, valueTypeError(ev, "number")
		}
		*next.floatField(ev.Property) = &f
	case PropertyGear:
		s, ok := ev.Value.(string)
		if !ok {
			return r, valueTypeError(ev, "string")
		}
		next.Gear = &s
	case PropertyNightMode:
		b, ok := ev.Value.(bool)
		if !ok {
			return r, valueTypeError(ev, "bool")
		}
		next.NightMode = &b
	default:
		return r, fmt.Errorf("unknown property %q", ev.Property)
	}
	next.Timestamp = ts
	return next, nil
}

func (r *Reading) floatField(property string) **float64 {
	switch property {
	case PropertyOutsideTemperature:
		return &r.OutsideTemperature
	case PropertyBatteryLevel:
		return &r.BatteryLevel
	case PropertyBatteryCapacity:
		return &r.BatteryCapacity
	case PropertySpeed:
		return &r.Speed
	default:
		return &r.RangeRemaining
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func valueTypeError(ev PropertyEvent, want string) error {
	return fmt.Errorf("property %q expects a %s value, got %T", ev.Property, want, ev.Value)
}

// LocationFix is one position reported by the location subsystem.
type LocationFix struct {
	Longitude              float64  `json:"longitude"`
	Latitude               float64  `json:"latitude"`
	Altitude               *float64 `json:"altitude,omitempty"`
	Accuracy               *float64 `json:"accuracy,omitempty"`
	Bearing                *float64 `json:"bearing,omitempty"`
	BearingAccuracyDegrees *float64 `json:"bearingAccuracyDegrees,omitempty"`
	Timestamp              int64    `json:"timestamp"`
}

// Batch is one delivery of location fixes. Seq increases with every
// delivery, so two batches with equal fixes are still distinct uploads.
type Batch struct {
	Seq   uint64        `json:"seq"`
	Fixes []LocationFix `json:"fixes"`
}

func (b Batch) Empty() bool { return len(b.Fixes) == 0 }
