package timedate

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// beatLength is the length of one Swatch Internet Time beat in seconds:
// a day divided into 1000 beats.
const beatLength = 86.4

// Sensor renders one display option as a sensor state. It is a pure
// value type; scheduling lives in the runner.
type Sensor struct {
	option string
	loc    *time.Location
}

// NewSensor creates a sensor for a display option. Times are rendered
// in loc; nil falls back to UTC.
func NewSensor(option string, loc *time.Location) (*Sensor, error) {
	if !ValidOption(option) {
		return nil, fmt.Errorf("unknown display option %q", option)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sensor{option: option, loc: loc}, nil
}

// Option returns the display option this sensor renders.
func (s *Sensor) Option() string { return s.option }

// UniqueID identifies the sensor within the time_date platform. The
// display option doubles as the unique id, which is what ties registry
// entries back to preview entities.
func (s *Sensor) UniqueID() string { return s.option }

// Name returns the default display name.
func (s *Sensor) Name() string { return OptionLabel(s.option) }

// State renders the sensor value for the given instant.
func (s *Sensor) State(now time.Time) string {
	local := now.In(s.loc)
	utc := now.UTC()

	switch s.option {
	case OptionTime:
		return local.Format("15:04")
	case OptionDate:
		return local.Format("2006-01-02")
	case OptionDateTime:
		return local.Format("2006-01-02, 15:04")
	case OptionDateTimeUTC:
		return utc.Format("2006-01-02, 15:04")
	case OptionDateTimeISO:
		// Minute resolution with an explicit :00 seconds field.
		return time.Date(local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), 0, 0, s.loc).Format("2006-01-02T15:04:05")
	case OptionTimeDate:
		return local.Format("15:04, 2006-01-02")
	case OptionTimeUTC:
		return utc.Format("15:04")
	case OptionBeat:
		return swatchBeat(now)
	}
	return ""
}

// swatchBeat renders Swatch Internet Time: the day (in UTC+1, Biel
// Mean Time) divided into 1000 beats.
func swatchBeat(now time.Time) string {
	ts := float64(now.UnixNano()) / float64(time.Second)
	beat := int(math.Mod(ts+3600, 86400) / beatLength)
	return fmt.Sprintf("@%03d", beat)
}

// Icon returns the material design icon for the option.
func (s *Sensor) Icon() string {
	hasDate := strings.Contains(s.option, "date")
	hasTime := strings.Contains(s.option, "time")
	switch {
	case hasDate && hasTime:
		return "mdi:calendar-clock"
	case hasDate:
		return "mdi:calendar"
	default:
		return "mdi:clock"
	}
}

// Attributes returns the state attributes published with the sensor.
func (s *Sensor) Attributes(name string) map[string]any {
	return map[string]any{
		"friendly_name": name,
		"icon":          s.Icon(),
	}
}

// NextUpdate returns the instant the sensor value next changes: local
// midnight for the date sensor, the next beat boundary for Internet
// Time, and the next minute boundary for everything else.
func (s *Sensor) NextUpdate(now time.Time) time.Time {
	switch s.option {
	case OptionDate:
		local := now.In(s.loc)
		return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.loc)
	case OptionBeat:
		// Shift by an hour because beat 0 starts at 23:00 UTC of the
		// previous day.
		ts := float64(now.Add(time.Hour).UnixNano()) / float64(time.Second)
		delta := beatLength - math.Mod(ts, beatLength)
		return now.Add(time.Duration(delta * float64(time.Second)))
	default:
		ts := float64(now.UnixNano()) / float64(time.Second)
		delta := 60 - math.Mod(ts, 60)
		return now.Add(time.Duration(delta * float64(time.Second)))
	}
}

// runner drives one sensor: it publishes the current state immediately
// and re-arms a timer for the next scheduled change until stopped.
type runner struct {
	sensor  *Sensor
	publish func(state string)

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func startRunner(sensor *Sensor, publish func(state string)) *runner {
	r := &runner{sensor: sensor, publish: publish}
	r.tick()
	return r
}

func (r *runner) tick() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	state := r.sensor.State(now)
	delay := time.Until(r.sensor.NextUpdate(now))
	if delay <= 0 {
		delay = time.Second
	}
	r.timer = time.AfterFunc(delay, r.tick)
	r.mu.Unlock()

	// Publish outside the lock: the callback may unwind into stop.
	r.publish(state)
}

func (r *runner) stop() {
	r.mu.Lock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
}
