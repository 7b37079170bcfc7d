package notesync

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestDeleter(remote RemoteClient, grace time.Duration, onError func(DeleteKind, string, error)) (*GraceDeleter, *Store) {
	store := NewStore()
	deleter := NewGraceDeleter(store, remote, GraceDeleterOptions{
		GracePeriod: grace,
		OnError:     onError,
		Logger:      zerolog.Nop(),
	})
	return deleter, store
}

func TestCancelWithinGracePeriod(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 200*time.Millisecond, nil)
	defer deleter.Close()
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if !snapshotNote(t, store.Snapshot(), "N1").PendingDeletion {
		t.Fatal("note must be hidden while pending deletion")
	}
	if !deleter.Cancel(DeleteKindNote, "N1") {
		t.Fatal("expected pending deletion to cancel")
	}

	time.Sleep(300 * time.Millisecond)
	if remote.noteDeletes() != 0 {
		t.Fatalf("cancelled deletion must never reach the remote, got %d calls", remote.noteDeletes())
	}
	n := snapshotNote(t, store.Snapshot(), "N1")
	if n.PendingDeletion {
		t.Fatal("cancelled note must be visible again")
	}
}

func TestCommitAfterGracePeriod(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 20*time.Millisecond, nil)
	defer deleter.Close()
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return store.NoteCount() == 0
	})
	if remote.noteDeletes() != 1 {
		t.Fatalf("expected exactly one remote delete, got %d", remote.noteDeletes())
	}
	if deleter.PendingCount() != 0 {
		t.Fatalf("expected no pending entries, got %d", deleter.PendingCount())
	}
}

func TestCommitFolderDelete(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 20*time.Millisecond, nil)
	defer deleter.Close()
	applyAll(store,
		folderInserted("A", "Work", ""),
		folderInserted("B", "Meetings", "A"),
	)

	if err := deleter.RequestDelete(DeleteKindFolder, "A"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return store.FolderCount() == 0
	})
	if remote.folderDeletes() != 1 {
		t.Fatalf("expected exactly one remote delete, got %d", remote.folderDeletes())
	}
}

func TestDuplicateRequestIsNoOp(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 20*time.Millisecond, nil)
	defer deleter.Close()
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("duplicate request: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return store.NoteCount() == 0
	})
	if remote.noteDeletes() != 1 {
		t.Fatalf("duplicate request must not double-delete, got %d calls", remote.noteDeletes())
	}
}

func TestRequestDeleteUnknownItem(t *testing.T) {
	deleter, _ := newTestDeleter(&fakeRemote{}, 20*time.Millisecond, nil)
	defer deleter.Close()
	if err := deleter.RequestDelete(DeleteKindNote, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := deleter.RequestDelete(DeleteKindNote, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCommitFailureRestoresItem(t *testing.T) {
	var reported int32
	remote := &fakeRemote{
		deleteNoteFn: func(id string) error { return errors.New("rejected") },
	}
	deleter, store := newTestDeleter(remote, 20*time.Millisecond, func(kind DeleteKind, id string, err error) {
		atomic.AddInt32(&reported, 1)
	})
	defer deleter.Close()
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return atomic.LoadInt32(&reported) == 1
	})
	n := snapshotNote(t, store.Snapshot(), "N1")
	if n.PendingDeletion {
		t.Fatal("note must be visible again after a rejected delete")
	}
	if store.NoteCount() != 1 {
		t.Fatalf("note must survive a rejected delete, got %d notes", store.NoteCount())
	}
}

func TestPerItemTimersAreIndependent(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 30*time.Millisecond, nil)
	defer deleter.Close()
	applyAll(store,
		noteInserted("N1", "keep", ""),
		noteInserted("N2", "drop", ""),
	)

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete N1: %v", err)
	}
	if err := deleter.RequestDelete(DeleteKindNote, "N2"); err != nil {
		t.Fatalf("RequestDelete N2: %v", err)
	}
	if !deleter.Cancel(DeleteKindNote, "N1") {
		t.Fatal("expected N1 cancel to succeed")
	}

	waitUntil(t, time.Second, func() bool {
		return store.NoteCount() == 1
	})
	if _, ok := store.Note("N1"); !ok {
		t.Fatal("cancelled note must survive")
	}
	if remote.noteDeletes() != 1 {
		t.Fatalf("expected one remote delete, got %d", remote.noteDeletes())
	}
}

func TestCloseStopsPendingTimers(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 30*time.Millisecond, nil)
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	deleter.Close()

	time.Sleep(80 * time.Millisecond)
	if remote.noteDeletes() != 0 {
		t.Fatalf("no remote delete may fire after close, got %d", remote.noteDeletes())
	}
	if snapshotNote(t, store.Snapshot(), "N1").PendingDeletion {
		t.Fatal("close must restore visibility")
	}
	if err := deleter.RequestDelete(DeleteKindNote, "N1"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after close, got %v", err)
	}
}

func TestCancelAfterCommitReportsFalse(t *testing.T) {
	remote := &fakeRemote{}
	deleter, store := newTestDeleter(remote, 10*time.Millisecond, nil)
	defer deleter.Close()
	store.Apply(noteInserted("N1", "standup", ""))

	if err := deleter.RequestDelete(DeleteKindNote, "N1"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return store.NoteCount() == 0
	})
	if deleter.Cancel(DeleteKindNote, "N1") {
		t.Fatal("cancel after commit must report false")
	}
}
