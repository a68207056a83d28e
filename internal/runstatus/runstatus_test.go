package runstatus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Trandung-02/mail-job-manager/internal/dispatch"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTracker(client), mr
}

func TestTrackerUpdateAndGet(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	tracker.Update(ctx, "run-1", dispatch.Progress{
		JobID: "job-1", State: "sending", Total: 10, Processed: 3, Sent: 2, Failed: 1,
	})

	p, ok, err := tracker.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok {
		t.Fatal("Get() missed a just-written run")
	}
	if p.State != "sending" || p.Total != 10 || p.Processed != 3 || p.Sent != 2 || p.Failed != 1 {
		t.Errorf("progress = %+v", p)
	}

	// Later snapshot overwrites the earlier one.
	tracker.Update(ctx, "run-1", dispatch.Progress{JobID: "job-1", State: "done", Total: 10, Processed: 10, Sent: 8, Failed: 2})
	p, _, _ = tracker.Get(ctx, "run-1")
	if p.State != "done" || p.Processed != 10 {
		t.Errorf("progress after overwrite = %+v", p)
	}
}

func TestTrackerGetUnknownRun(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, ok, err := tracker.Get(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() reported a hit for an unknown run")
	}
}

func TestTrackerExpiry(t *testing.T) {
	tracker, mr := newTestTracker(t)
	ctx := context.Background()

	tracker.Update(ctx, "run-1", dispatch.Progress{State: "sending", Total: 1})
	if ttl := mr.TTL(runKey("run-1")); ttl != defaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, defaultTTL)
	}

	mr.FastForward(defaultTTL * 2)
	if _, ok, _ := tracker.Get(ctx, "run-1"); ok {
		t.Error("run status survived past its TTL")
	}
}

func TestTrackerNilClient(t *testing.T) {
	tracker := NewTracker(nil)
	ctx := context.Background()

	tracker.Update(ctx, "run-1", dispatch.Progress{State: "sending"})
	if _, ok, err := tracker.Get(ctx, "run-1"); ok || err != nil {
		t.Errorf("nil-client Get() = hit %v err %v, want miss and nil", ok, err)
	}
}
