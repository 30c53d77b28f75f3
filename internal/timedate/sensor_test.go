package timedate

import (
	"sync"
	"testing"
	"time"
)

// fixedInstant is 2024-01-10 21:03:45 UTC, which is 22:03:45 in
// Stockholm (UTC+1 in January).
var fixedInstant = time.Date(2024, 1, 10, 21, 3, 45, 0, time.UTC)

func stockholm(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	return loc
}

func TestSensorState(t *testing.T) {
	loc := stockholm(t)

	tests := []struct {
		option string
		want   string
	}{
		{OptionTime, "22:03"},
		{OptionDate, "2024-01-10"},
		{OptionDateTime, "2024-01-10, 22:03"},
		{OptionDateTimeUTC, "2024-01-10, 21:03"},
		{OptionDateTimeISO, "2024-01-10T22:03:00"},
		{OptionTimeDate, "22:03, 2024-01-10"},
		{OptionTimeUTC, "21:03"},
		{OptionBeat, "@919"},
	}

	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			s, err := NewSensor(tt.option, loc)
			if err != nil {
				t.Fatalf("NewSensor(%q): %v", tt.option, err)
			}
			if got := s.State(fixedInstant); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSensorStateDateRollsWithZone(t *testing.T) {
	// 23:30 UTC on Jan 10 is already Jan 11 in Stockholm.
	instant := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)
	s, err := NewSensor(OptionDate, stockholm(t))
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	if got := s.State(instant); got != "2024-01-11" {
		t.Errorf("State() = %q, want 2024-01-11", got)
	}
}

func TestSensorBeatBoundary(t *testing.T) {
	// 23:00:00 UTC is midnight in Biel Mean Time, beat zero.
	s, err := NewSensor(OptionBeat, time.UTC)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	instant := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	if got := s.State(instant); got != "@000" {
		t.Errorf("State() = %q, want @000", got)
	}
	// One beat shy of rollover.
	instant = time.Date(2024, 1, 10, 22, 59, 59, 0, time.UTC)
	if got := s.State(instant); got != "@999" {
		t.Errorf("State() = %q, want @999", got)
	}
}

func TestSensorIcon(t *testing.T) {
	tests := []struct {
		option string
		want   string
	}{
		{OptionTime, "mdi:clock"},
		{OptionTimeUTC, "mdi:clock"},
		{OptionBeat, "mdi:clock"},
		{OptionDate, "mdi:calendar"},
		{OptionDateTime, "mdi:calendar-clock"},
		{OptionDateTimeUTC, "mdi:calendar-clock"},
		{OptionDateTimeISO, "mdi:calendar-clock"},
		{OptionTimeDate, "mdi:calendar-clock"},
	}

	for _, tt := range tests {
		s, err := NewSensor(tt.option, time.UTC)
		if err != nil {
			t.Fatalf("NewSensor(%q): %v", tt.option, err)
		}
		if got := s.Icon(); got != tt.want {
			t.Errorf("Icon(%s) = %q, want %q", tt.option, got, tt.want)
		}
	}
}

func TestSensorAttributes(t *testing.T) {
	s, err := NewSensor(OptionDateTime, time.UTC)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	attrs := s.Attributes("Date & Time")
	if attrs["friendly_name"] != "Date & Time" {
		t.Errorf("friendly_name = %v", attrs["friendly_name"])
	}
	if attrs["icon"] != "mdi:calendar-clock" {
		t.Errorf("icon = %v", attrs["icon"])
	}
}

func TestSensorNextUpdate(t *testing.T) {
	loc := stockholm(t)

	t.Run("minute options wake on the next minute", func(t *testing.T) {
		s, err := NewSensor(OptionTime, loc)
		if err != nil {
			t.Fatalf("NewSensor(): %v", err)
		}
		next := s.NextUpdate(fixedInstant)
		want := time.Date(2024, 1, 10, 21, 4, 0, 0, time.UTC)
		if d := next.Sub(want); d < -time.Millisecond || d > time.Millisecond {
			t.Errorf("NextUpdate() = %v, want %v", next, want)
		}
	})

	t.Run("date wakes at local midnight", func(t *testing.T) {
		s, err := NewSensor(OptionDate, loc)
		if err != nil {
			t.Fatalf("NewSensor(): %v", err)
		}
		next := s.NextUpdate(fixedInstant)
		want := time.Date(2024, 1, 11, 0, 0, 0, 0, loc)
		if !next.Equal(want) {
			t.Errorf("NextUpdate() = %v, want %v", next, want)
		}
	})

	t.Run("beat wakes on the next beat boundary", func(t *testing.T) {
		s, err := NewSensor(OptionBeat, loc)
		if err != nil {
			t.Fatalf("NewSensor(): %v", err)
		}
		next := s.NextUpdate(fixedInstant)
		// 63 seconds to the next 86.4s boundary in Biel Mean Time.
		want := fixedInstant.Add(63 * time.Second)
		if d := next.Sub(want); d < -time.Millisecond || d > time.Millisecond {
			t.Errorf("NextUpdate() = %v, want %v", next, want)
		}
	})
}

func TestNewSensorRejectsUnknownOption(t *testing.T) {
	if _, err := NewSensor("stardate", time.UTC); err == nil {
		t.Fatal("expected error for unknown option")
	}
}

func TestNewSensorNilLocationDefaultsUTC(t *testing.T) {
	s, err := NewSensor(OptionTimeUTC, nil)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	if got, want := s.State(fixedInstant), "21:03"; got != want {
		t.Errorf("State() = %q, want %q", got, want)
	}
}

func TestSensorIdentity(t *testing.T) {
	s, err := NewSensor(OptionDateTimeUTC, time.UTC)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	if s.UniqueID() != OptionDateTimeUTC {
		t.Errorf("UniqueID() = %q, want the option itself", s.UniqueID())
	}
	if s.Name() != "Date & Time (UTC)" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestRunnerPublishesImmediately(t *testing.T) {
	s, err := NewSensor(OptionTime, time.UTC)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}

	var mu sync.Mutex
	var got []string
	r := startRunner(s, func(state string) {
		mu.Lock()
		got = append(got, state)
		mu.Unlock()
	})
	defer r.stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("runner did not publish on start")
	}
	if len(got[0]) != 5 || got[0][2] != ':' {
		t.Errorf("published state %q does not look like HH:MM", got[0])
	}
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	s, err := NewSensor(OptionTime, time.UTC)
	if err != nil {
		t.Fatalf("NewSensor(): %v", err)
	}
	r := startRunner(s, func(string) {})
	r.stop()
	r.stop()
}
