package admin

import (
	"testing"
	"time"
)

func TestSessionStoreTTL(t *testing.T) {
	store := NewSessionStore(50 * time.Millisecond)
	store.Set(1, &Session{State: StateAwaitingPanelTitle})

	if sess := store.Get(1); sess == nil || sess.State != StateAwaitingPanelTitle {
		t.Fatalf("сессия должна быть доступна сразу после Set")
	}

	time.Sleep(60 * time.Millisecond)
	if sess := store.Get(1); sess != nil {
		t.Errorf("просроченная сессия должна быть удалена")
	}
}

func TestSessionStoreClear(t *testing.T) {
	store := NewSessionStore(time.Minute)
	store.Set(1, &Session{State: StateAwaitingBroadcastText})
	store.Clear(1)
	if store.Get(1) != nil {
		t.Errorf("Clear должен удалять сессию")
	}
}

func TestSessionStoreIsolatedPerActor(t *testing.T) {
	store := NewSessionStore(time.Minute)
	store.Set(1, &Session{State: StateAwaitingPanelTitle})
	store.Set(2, &Session{State: StateAwaitingTopupTgID})

	if store.Get(1).State != StateAwaitingPanelTitle {
		t.Errorf("состояние актора 1 перепутано")
	}
	if store.Get(2).State != StateAwaitingTopupTgID {
		t.Errorf("состояние актора 2 перепутано")
	}
}
