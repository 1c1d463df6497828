package session_test

import (
	"testing"

	"github.com/sidu-provider/portal-api/internal/session"
)

func TestTracker_StartsLoading(t *testing.T) {
	tr := session.NewTracker()

	snap := tr.Current()
	if snap.State != session.StateLoading {
		t.Fatalf("expected loading, got %s", snap.State)
	}
}

func TestTracker_SubscribeReplaysCurrent(t *testing.T) {
	tr := session.NewTracker()
	tr.SetAuthenticated("uid-1")

	var got []session.Snapshot
	unsub := tr.Subscribe(func(s session.Snapshot) {
		got = append(got, s)
	})
	defer unsub()

	if len(got) != 1 {
		t.Fatalf("expected 1 replayed snapshot, got %d", len(got))
	}
	if got[0].State != session.StateAuthenticated || got[0].UID != "uid-1" {
		t.Errorf("unexpected snapshot: %+v", got[0])
	}
}

func TestTracker_NotifiesOnChange(t *testing.T) {
	tr := session.NewTracker()

	var got []session.Snapshot
	unsub := tr.Subscribe(func(s session.Snapshot) {
		got = append(got, s)
	})
	defer unsub()

	tr.SetAuthenticated("uid-1")
	tr.SetUnauthenticated("uid-1")

	// initial loading replay + two transitions
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if got[1].State != session.StateAuthenticated {
		t.Errorf("expected authenticated, got %s", got[1].State)
	}
	if got[2].State != session.StateUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", got[2].State)
	}
	if got[2].UID != "" {
		t.Errorf("expected empty uid after sign-out, got %s", got[2].UID)
	}
}

func TestTracker_UnsubscribeStopsDelivery(t *testing.T) {
	tr := session.NewTracker()

	calls := 0
	unsub := tr.Subscribe(func(session.Snapshot) { calls++ })
	unsub()
	unsub() // second call is a no-op

	tr.SetAuthenticated("uid-1")

	if calls != 1 {
		t.Fatalf("expected only the replay call, got %d", calls)
	}
}

func TestTracker_ActiveCount(t *testing.T) {
	tr := session.NewTracker()

	var counts []int
	tr.OnActiveCountChange(func(n int) { counts = append(counts, n) })

	tr.SetAuthenticated("uid-1")
	tr.SetAuthenticated("uid-2")
	tr.SetAuthenticated("uid-1") // repeat sign-in, same uid
	tr.SetUnauthenticated("uid-2")

	if tr.ActiveCount() != 1 {
		t.Fatalf("expected 1 active uid, got %d", tr.ActiveCount())
	}
	want := []int{1, 2, 2, 1}
	if len(counts) != len(want) {
		t.Fatalf("expected %d count callbacks, got %d", len(want), len(counts))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("callback %d: expected %d, got %d", i, want[i], counts[i])
		}
	}
}
