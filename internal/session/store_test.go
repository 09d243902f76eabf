package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestStoreKeepsStatePerSession(t *testing.T) {
	_, _, orch := newFixture()
	store := NewStore(nil)
	ctx := context.Background()

	if _, err := store.Apply(ctx, "alice", orch.Connect); err != nil {
		t.Fatalf("Apply(connect) error = %v", err)
	}
	if got := store.Get("alice"); got.Phase != PhaseConnected {
		t.Fatalf("alice phase = %q", got.Phase)
	}
	if got := store.Get("bob"); got.Phase != PhaseDisconnected || got.Selected != -1 {
		t.Fatalf("bob state = %#v", got)
	}
	if got := store.Get(""); got.Phase != PhaseDisconnected {
		t.Fatalf("default phase = %q", got.Phase)
	}
}

func TestStoreStoresPriorStateOnFailure(t *testing.T) {
	_, _, orch := newFixture()
	store := NewStore(nil)
	ctx := context.Background()

	if _, err := store.Apply(ctx, DefaultID, orch.Connect); err != nil {
		t.Fatalf("Apply(connect) error = %v", err)
	}
	st, err := store.Apply(ctx, DefaultID, func(ctx context.Context, prev State) (State, error) {
		return orch.SelectSchema(ctx, prev, "MISSING")
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Apply(select) error = %v", err)
	}
	stored := store.Get(DefaultID)
	if stored.Phase != PhaseConnected || len(stored.Notices) != 1 || stored.Notices[0].Level != NoticeError {
		t.Fatalf("stored = %#v", stored)
	}
	if st.Phase != stored.Phase {
		t.Fatalf("returned phase %q, stored %q", st.Phase, stored.Phase)
	}
}

func TestStoreSerializesRequestsPerSession(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	step := func(ctx context.Context, prev State) (State, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		prev.Logs = append(prev.Logs, "x")

		mu.Lock()
		active--
		mu.Unlock()
		return prev, nil
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Apply(ctx, "shared", step)
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent transitions = %d", maxSeen)
	}
	if got := len(store.Get("shared").Logs); got != 20 {
		t.Fatalf("logs = %d, want 20", got)
	}
}

func TestStoreCloseDisconnectsSessions(t *testing.T) {
	client, _, orch := newFixture()
	store := NewStore(nil)
	if _, err := store.Apply(context.Background(), "alice", orch.Connect); err != nil {
		t.Fatalf("Apply(connect) error = %v", err)
	}
	store.Close()
	if !client.closed {
		t.Fatal("client should be closed")
	}
	if store.Get("alice").Connected() {
		t.Fatal("session should be disconnected")
	}
}

func TestStoreDropsIdleDisconnectedSessions(t *testing.T) {
	_, _, orch := newFixture()
	store := NewStore(nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = store.Get(id)
		if _, err := store.Apply(ctx, id, orch.Disconnect); err != nil {
			t.Fatalf("Apply(disconnect %s) error = %v", id, err)
		}
		_ = store.View(ctx, id, func(context.Context, State) error { return nil })
	}
	if n := store.Len(); n != 0 {
		t.Fatalf("sessions held = %d, want 0", n)
	}

	if _, err := store.Apply(ctx, "alice", orch.Connect); err != nil {
		t.Fatalf("Apply(connect) error = %v", err)
	}
	if n := store.Len(); n != 1 {
		t.Fatalf("sessions held after connect = %d", n)
	}
	st, err := store.Apply(ctx, "alice", orch.Disconnect)
	if err != nil {
		t.Fatalf("Apply(disconnect) error = %v", err)
	}
	if len(st.Notices) == 0 {
		t.Fatalf("disconnect state = %#v", st)
	}
	if n := store.Len(); n != 0 {
		t.Fatalf("sessions held after disconnect = %d", n)
	}
}

func TestStoreKeepsDisconnectedSessionWithLogs(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	withLogs := func(_ context.Context, prev State) (State, error) {
		return prev.appendLogs([]string{"generated 5 questions"}), nil
	}
	if _, err := store.Apply(ctx, "alice", withLogs); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n := store.Len(); n != 1 {
		t.Fatalf("sessions held = %d", n)
	}
	if got := store.Get("alice").Logs; len(got) != 1 {
		t.Fatalf("logs = %#v", got)
	}

	clearLogs := func(_ context.Context, prev State) (State, error) {
		prev.Logs = nil
		return prev, nil
	}
	if _, err := store.Apply(ctx, "alice", clearLogs); err != nil {
		t.Fatalf("Apply(clear) error = %v", err)
	}
	if n := store.Len(); n != 0 {
		t.Fatalf("sessions held after clearing logs = %d", n)
	}
}

func TestStoreConcurrentDropAndConnect(t *testing.T) {
	_, _, orch := newFixture()
	store := NewStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Apply(ctx, "shared", orch.Disconnect)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Apply(ctx, "shared", orch.Connect)
		}()
	}
	wg.Wait()

	if _, err := store.Apply(ctx, "shared", orch.Connect); err != nil {
		t.Fatalf("Apply(connect) error = %v", err)
	}
	if !store.Get("shared").Connected() || store.Len() != 1 {
		t.Fatalf("connected = %v len = %d", store.Get("shared").Connected(), store.Len())
	}
}
