package timedate

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

type previewCollector struct {
	mu    sync.Mutex
	sends [][]PreviewItem
}

func (c *previewCollector) send(items []PreviewItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]PreviewItem, len(items))
	copy(copied, items)
	c.sends = append(c.sends, copied)
}

func (c *previewCollector) snapshot() [][]PreviewItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]PreviewItem, len(c.sends))
	copy(out, c.sends)
	return out
}

func TestStartPreviewAccumulatesItems(t *testing.T) {
	var c previewCollector

	stop, err := StartPreview([]string{"time", "date_time"}, time.UTC, nil, c.send)
	if err != nil {
		t.Fatalf("StartPreview(): %v", err)
	}
	defer stop()

	sends := c.snapshot()
	if len(sends) < 2 {
		t.Fatalf("got %d sends, want at least one per sensor", len(sends))
	}

	// The first event carries the first sensor, the second both, in
	// selection order.
	if len(sends[0]) != 1 {
		t.Fatalf("first event has %d items, want 1", len(sends[0]))
	}
	if len(sends[1]) != 2 {
		t.Fatalf("second event has %d items, want 2", len(sends[1]))
	}

	timeItem, dateTimeItem := sends[1][0], sends[1][1]
	if !regexp.MustCompile(`^\d{2}:\d{2}$`).MatchString(timeItem.State) {
		t.Errorf("time state %q does not look like HH:MM", timeItem.State)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}, \d{2}:\d{2}$`).MatchString(dateTimeItem.State) {
		t.Errorf("date_time state %q has unexpected shape", dateTimeItem.State)
	}
	if timeItem.Attributes["friendly_name"] != "Time" {
		t.Errorf("friendly_name = %v, want Time", timeItem.Attributes["friendly_name"])
	}
	if timeItem.Attributes["icon"] != "mdi:clock" {
		t.Errorf("icon = %v, want mdi:clock", timeItem.Attributes["icon"])
	}
	if dateTimeItem.Attributes["icon"] != "mdi:calendar-clock" {
		t.Errorf("icon = %v, want mdi:calendar-clock", dateTimeItem.Attributes["icon"])
	}
}

func TestStartPreviewNameOverrides(t *testing.T) {
	var c previewCollector

	stop, err := StartPreview([]string{"time", "date"}, time.UTC,
		map[string]string{"time": "Wall Clock"}, c.send)
	if err != nil {
		t.Fatalf("StartPreview(): %v", err)
	}
	defer stop()

	sends := c.snapshot()
	if len(sends) < 2 {
		t.Fatalf("got %d sends", len(sends))
	}
	last := sends[1]
	if last[0].Attributes["friendly_name"] != "Wall Clock" {
		t.Errorf("overridden name = %v", last[0].Attributes["friendly_name"])
	}
	if last[1].Attributes["friendly_name"] != "Date" {
		t.Errorf("default name = %v", last[1].Attributes["friendly_name"])
	}
}

func TestStartPreviewDeduplicatesOptions(t *testing.T) {
	var c previewCollector

	stop, err := StartPreview([]string{"time", "time"}, time.UTC, nil, c.send)
	if err != nil {
		t.Fatalf("StartPreview(): %v", err)
	}
	defer stop()

	sends := c.snapshot()
	if len(sends) == 0 {
		t.Fatal("no events sent")
	}
	if len(sends[len(sends)-1]) != 1 {
		t.Errorf("duplicate option produced %d items", len(sends[len(sends)-1]))
	}
}

func TestStartPreviewRejectsUnknownOption(t *testing.T) {
	if _, err := StartPreview([]string{"stardate"}, time.UTC, nil, func([]PreviewItem) {}); err == nil {
		t.Fatal("expected error for unknown option")
	}
}

func TestStartPreviewStopIsIdempotent(t *testing.T) {
	stop, err := StartPreview([]string{"time"}, time.UTC, nil, func([]PreviewItem) {})
	if err != nil {
		t.Fatalf("StartPreview(): %v", err)
	}
	stop()
	stop()
}
