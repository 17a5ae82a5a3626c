package progress

import (
	"testing"
	"time"
)

func TestTrackerMonotonicPercent(t *testing.T) {
	reg := NewRegistry(time.Minute)
	tr := reg.Start("run-1")

	tr.Set(10, "starting")
	tr.Set(40, "working")
	tr.Set(20, "regression attempt")

	got := tr.Current()
	if got.Percent != 40 {
		t.Errorf("percent = %d, want 40 (must not decrease)", got.Percent)
	}
	if got.Status != "regression attempt" {
		t.Errorf("status = %q, status text should still update", got.Status)
	}
}

func TestSubscriberSeesOrderedUpdatesAndClose(t *testing.T) {
	reg := NewRegistry(time.Minute)
	tr := reg.Start("run-1")

	ch, cancel := tr.Subscribe()
	defer cancel()

	tr.Set(10, "processing")
	tr.Set(50, "halfway")
	tr.Set(100, "done")

	var seen []Update
	for u := range ch {
		seen = append(seen, u)
	}

	if len(seen) == 0 {
		t.Fatal("subscriber received no updates")
	}
	last := 0
	for _, u := range seen {
		if u.Percent < last {
			t.Errorf("percent went backwards: %d after %d", u.Percent, last)
		}
		last = u.Percent
	}
	if seen[len(seen)-1].Percent != 100 {
		t.Errorf("final update percent = %d, want 100", seen[len(seen)-1].Percent)
	}
	if !tr.Done() {
		t.Error("tracker should be done after reaching 100")
	}
}

func TestSetAfterTerminationIsIgnored(t *testing.T) {
	reg := NewRegistry(time.Minute)
	tr := reg.Start("run-1")

	tr.Set(100, "done")
	tr.Set(100, "late update")

	if got := tr.Current().Status; got != "done" {
		t.Errorf("status = %q, want %q", got, "done")
	}
}

func TestFailClosesSubscribers(t *testing.T) {
	reg := NewRegistry(time.Minute)
	tr := reg.Start("run-1")

	ch, cancel := tr.Subscribe()
	defer cancel()

	tr.Set(30, "working")
	tr.Fail("Error: upstream unavailable")

	var last Update
	for u := range ch {
		last = u
	}
	if last.Percent != 30 {
		t.Errorf("failed run percent = %d, want 30", last.Percent)
	}
	if last.Status != "Error: upstream unavailable" {
		t.Errorf("failed run status = %q", last.Status)
	}
	if !tr.Done() {
		t.Error("tracker should be done after Fail")
	}
}

func TestSubscribeAfterTermination(t *testing.T) {
	reg := NewRegistry(time.Minute)
	tr := reg.Start("run-1")
	tr.Set(100, "done")

	ch, cancel := tr.Subscribe()
	defer cancel()

	u, ok := <-ch
	if !ok {
		t.Fatal("expected the final state before close")
	}
	if u.Percent != 100 {
		t.Errorf("percent = %d, want 100", u.Percent)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the final state")
	}
}

func TestRegistryLatestAndLookup(t *testing.T) {
	reg := NewRegistry(time.Minute)
	reg.Start("a")
	trB := reg.Start("b")

	if got, ok := reg.Get("a"); !ok || got == nil {
		t.Error("run a should be retrievable by id")
	}
	latest, ok := reg.Latest()
	if !ok || latest != trB {
		t.Error("latest should be the most recently started run")
	}
}

func TestRegistryEvictsFinishedRuns(t *testing.T) {
	reg := NewRegistry(10 * time.Millisecond)
	tr := reg.Start("short")
	tr.Set(100, "done")

	deadline := time.After(time.Second)
	for {
		if _, ok := reg.Get("short"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("finished run was not evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
