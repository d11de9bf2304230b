package server

import (
	"fmt"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	seq := 0
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r.newID = func() string {
		seq++
		return fmt.Sprintf("s%02d", seq)
	}
	r.now = func() time.Time {
		return base.Add(time.Duration(seq) * time.Second)
	}
	return r
}

func TestRegistryDuplicateNicknamesCoexist(t *testing.T) {
	r := newTestRegistry()
	a := r.Register("Fox", &fakeConn{})
	b := r.Register("Fox", &fakeConn{})

	if a == b {
		t.Fatalf("expected distinct session ids, got %q twice", a)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	conn := &fakeConn{}
	id := r.Register("Fox", conn)

	session, ok := r.Unregister(id)
	if !ok {
		t.Fatalf("expected first unregister to succeed")
	}
	if session.Nickname != "Fox" || session.ID != id {
		t.Fatalf("unexpected departed session %+v", session)
	}
	if !conn.isClosed() {
		t.Fatalf("expected transport to be closed on unregister")
	}
	if _, ok := r.Unregister(id); ok {
		t.Fatalf("expected second unregister to be a no-op")
	}
	if _, ok := r.Unregister("never-registered"); ok {
		t.Fatalf("expected unknown id to be a no-op")
	}
}

func TestRegistrySnapshotOrderedByJoinTime(t *testing.T) {
	r := newTestRegistry()
	first := r.Register("Ant", &fakeConn{})
	second := r.Register("Bee", &fakeConn{})
	third := r.Register("Cat", &fakeConn{})
	r.Unregister(second)

	users := r.Snapshot()
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ID != first || users[1].ID != third {
		t.Fatalf("unexpected order %+v", users)
	}
	if users[0].JoinTime != "2024-05-01T09:00:01.000Z" {
		t.Fatalf("unexpected join time format %q", users[0].JoinTime)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := newTestRegistry()
	id := r.Register("Fox", &fakeConn{})

	session, ok := r.Lookup(id)
	if !ok || session.Nickname != "Fox" {
		t.Fatalf("expected lookup hit, got %+v ok=%v", session, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("expected lookup miss")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := newTestRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("A", a)
	r.Register("B", b)

	r.closeAll()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
	if !a.isClosed() || !b.isClosed() {
		t.Fatalf("expected all transports closed")
	}
}
