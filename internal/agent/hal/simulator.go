package hal

import (
	"context"
	"math"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// Sink receives simulated signals. telemetry.Source satisfies it.
type Sink interface {
	ApplyProperty(ev telemetry.PropertyEvent) error
	ReplaceLocations(fixes []telemetry.LocationFix) telemetry.Batch
}

// Waypoint is a point of the simulated route.
type Waypoint struct {
	Longitude float64
	Latitude  float64
}

// DefaultRoute is a closed loop through central Berlin.
var DefaultRoute = []Waypoint{
	{Longitude: 13.3777, Latitude: 52.5163},
	{Longitude: 13.3950, Latitude: 52.5186},
	{Longitude: 13.4132, Latitude: 52.5219},
	{Longitude: 13.4180, Latitude: 52.5128},
	{Longitude: 13.4010, Latitude: 52.5070},
	{Longitude: 13.3790, Latitude: 52.5090},
}

const (
	fixesPerBatch   = 5
	batteryCapacity = 77.0 // kWh
	kmPerPercent    = 4.5
	earthRadiusM    = 6_371_000.0
)

// Simulator drives a vehicle around a route, reporting properties and one
// location batch per tick.
type Simulator struct {
	sink     Sink
	clock    clock.Clock
	interval time.Duration
	route    []Waypoint

	// leg is the index of the waypoint the vehicle last passed; progress is
	// the fraction of the leg towards the next waypoint.
	leg      int
	progress float64
	battery  float64
	tick     int

	logger log.Logger
}

type SimulatorOption func(*Simulator)

func WithRoute(route []Waypoint) SimulatorOption {
	return func(s *Simulator) {
		if len(route) >= 2 {
			s.route = route
		}
	}
}

func WithSimulatorClock(c clock.Clock) SimulatorOption {
	return func(s *Simulator) { s.clock = c }
}

func NewSimulator(sink Sink, interval time.Duration, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		sink:     sink,
		clock:    clock.RealClock{},
		interval: interval,
		route:    DefaultRoute,
		battery:  80,
		logger:   log.WithName("simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reports the static properties once, then one step per interval until
// ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("Starting simulated vehicle feed", "interval", s.interval, "waypoints", len(s.route))

	s.emit(telemetry.PropertyBatteryCapacity, batteryCapacity)
	s.emit(telemetry.PropertyGear, "D")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.Step()
		}
	}
}

// Step advances the vehicle by one interval.
func (s *Simulator) Step() {
	now := s.clock.Now()
	s.tick++

	// Each interval covers half a leg so a batch never spans a corner twice.
	const perStep = 0.5
	fixes := make([]telemetry.LocationFix, 0, fixesPerBatch)
	start := now.Add(-s.interval)
	var distance float64
	prev := s.position()
	for i := 1; i <= fixesPerBatch; i++ {
		s.advance(perStep / fixesPerBatch)
		pos := s.position()
		distance += haversine(prev, pos)
		next := s.route[(s.leg+1)%len(s.route)]
		bearing := initialBearing(pos, next)
		accuracy := 5.0
		ts := start.Add(s.interval * time.Duration(i) / fixesPerBatch)
		fixes = append(fixes, telemetry.LocationFix{
			Longitude: pos.Longitude,
			Latitude:  pos.Latitude,
			Accuracy:  &accuracy,
			Bearing:   &bearing,
			Timestamp: ts.UnixMilli(),
		})
		prev = pos
	}

	speed := distance / s.interval.Seconds() * 3.6
	s.battery = math.Max(5, s.battery-distance/1000/kmPerPercent)

	s.emit(telemetry.PropertySpeed, round(speed, 1))
	s.emit(telemetry.PropertyBatteryLevel, round(s.battery, 1))
	s.emit(telemetry.PropertyRangeRemaining, round(s.battery*kmPerPercent, 1))
	s.emit(telemetry.PropertyOutsideTemperature, round(12+3*math.Sin(float64(s.tick)/10), 1))
	hour := now.Hour()
	s.emit(telemetry.PropertyNightMode, hour < 7 || hour >= 20)

	batch := s.sink.ReplaceLocations(fixes)
	s.logger.Debug("Simulated step", "seq", batch.Seq, "speed", speed, "battery", s.battery)
}

func (s *Simulator) emit(property string, value any) {
	ev := telemetry.PropertyEvent{Property: property, Value: value, Timestamp: s.clock.Now().UnixMilli()}
	if err := s.sink.ApplyProperty(ev); err != nil {
		s.logger.Error(err, "Simulated property rejected", "property", property)
	}
}

func (s *Simulator) advance(delta float64) {
	s.progress += delta
	for s.progress >= 1 {
		s.progress--
		s.leg = (s.leg + 1) % len(s.route)
	}
}

func (s *Simulator) position() Waypoint {
	from := s.route[s.leg]
	to := s.route[(s.leg+1)%len(s.route)]
	return Waypoint{
		Longitude: from.Longitude + (to.Longitude-from.Longitude)*s.progress,
		Latitude:  from.Latitude + (to.Latitude-from.Latitude)*s.progress,
	}
}

func haversine(a, b Waypoint) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

func initialBearing(a, b Waypoint) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLon := radians(b.Longitude - a.Longitude)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
