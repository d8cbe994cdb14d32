package screencast

import (
	"testing"
	"time"
)

func TestFrameLatencyComputesMillisecondDelta(t *testing.T) {
	now := time.Now()
	frameTime := now.Add(-150 * time.Millisecond)
	ts := float64(frameTime.UnixNano()) / float64(time.Second)

	got := frameLatency(ts, now)
	if got < 140 || got > 160 {
		t.Fatalf("frameLatency = %d, want ~150", got)
	}
}

func TestSetPageUpdatesStoredPageState(t *testing.T) {
	s := &Stream{}
	s.SetPage("https://example.com", "Example Domain")
	if s.pageURL != "https://example.com" || s.pageTitle != "Example Domain" {
		t.Fatalf("pageURL/pageTitle = %q/%q, want the values just set", s.pageURL, s.pageTitle)
	}
}
