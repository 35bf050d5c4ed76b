package httpapi

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/audit"
)

func TestBroadcaster_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	want := audit.Record{ScanID: "scan-1", Timestamp: time.Now(), EventType: audit.EventScanStarted}
	b.Publish(want)

	select {
	case got := <-ch:
		if got.ScanID != want.ScanID {
			t.Fatalf("got ScanID %q, want %q", got.ScanID, want.ScanID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published record")
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	// Fill the subscriber's buffer, then publish one more: Publish must
	// return promptly instead of blocking on the full channel.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			b.Publish(audit.Record{ScanID: "scan-1", Timestamp: time.Now(), EventType: audit.EventScanStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber instead of dropping")
	}
}

func TestBroadcaster_NoSubscribersIsANoop(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	b.Publish(audit.Record{ScanID: "scan-1", Timestamp: time.Now(), EventType: audit.EventScanStarted})
}
