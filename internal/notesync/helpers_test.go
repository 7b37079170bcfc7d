package notesync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRemote struct {
	createFolderFn func(name, parentID string) (MutationResult, error)
	createNoteFn   func(title, folderID string) (MutationResult, error)
	renameFolderFn func(id, name string) error
	moveFolderFn   func(id, parentID string) error
	deleteFolderFn func(id string) error
	renameNoteFn   func(id, title string) error
	moveNoteFn     func(id, folderID string) error
	deleteNoteFn   func(id string) error
	jobStatusFn    func(jobID string) (JobState, error)

	deleteNoteCalls   int32
	deleteFolderCalls int32
	jobStatusCalls    int32
}

func (f *fakeRemote) CreateFolder(_ context.Context, name, parentID string) (MutationResult, error) {
	if f.createFolderFn != nil {
		return f.createFolderFn(name, parentID)
	}
	return MutationResult{ID: "folder_" + name}, nil
}

func (f *fakeRemote) CreateNote(_ context.Context, title, folderID string) (MutationResult, error) {
	if f.createNoteFn != nil {
		return f.createNoteFn(title, folderID)
	}
	return MutationResult{ID: "note_" + title}, nil
}

func (f *fakeRemote) RenameFolder(_ context.Context, id, name string) error {
	if f.renameFolderFn != nil {
		return f.renameFolderFn(id, name)
	}
	return nil
}

func (f *fakeRemote) MoveFolder(_ context.Context, id, parentID string) error {
	if f.moveFolderFn != nil {
		return f.moveFolderFn(id, parentID)
	}
	return nil
}

func (f *fakeRemote) DeleteFolder(_ context.Context, id string) error {
	atomic.AddInt32(&f.deleteFolderCalls, 1)
	if f.deleteFolderFn != nil {
		return f.deleteFolderFn(id)
	}
	return nil
}

func (f *fakeRemote) RenameNote(_ context.Context, id, title string) error {
	if f.renameNoteFn != nil {
		return f.renameNoteFn(id, title)
	}
	return nil
}

func (f *fakeRemote) MoveNote(_ context.Context, id, folderID string) error {
	if f.moveNoteFn != nil {
		return f.moveNoteFn(id, folderID)
	}
	return nil
}

func (f *fakeRemote) DeleteNote(_ context.Context, id string) error {
	atomic.AddInt32(&f.deleteNoteCalls, 1)
	if f.deleteNoteFn != nil {
		return f.deleteNoteFn(id)
	}
	return nil
}

func (f *fakeRemote) JobStatus(_ context.Context, jobID string) (JobState, error) {
	atomic.AddInt32(&f.jobStatusCalls, 1)
	if f.jobStatusFn != nil {
		return f.jobStatusFn(jobID)
	}
	return JobState{Status: NoteStatusCompleted}, nil
}

func (f *fakeRemote) noteDeletes() int {
	return int(atomic.LoadInt32(&f.deleteNoteCalls))
}

func (f *fakeRemote) folderDeletes() int {
	return int(atomic.LoadInt32(&f.deleteFolderCalls))
}

func folderInserted(id, name, parentID string) Event {
	return Event{Kind: EventFolderInserted, Folder: &FolderPayload{ID: id, Name: name, ParentID: parentID}}
}

func folderUpdated(id, name string) Event {
	return Event{Kind: EventFolderUpdated, Folder: &FolderPayload{ID: id, Name: name}}
}

func folderDeleted(id string) Event {
	return Event{Kind: EventFolderDeleted, Folder: &FolderPayload{ID: id}}
}

func noteInserted(id, title, folderID string) Event {
	return Event{Kind: EventNoteInserted, Note: &NotePayload{
		ID:        id,
		Title:     title,
		FolderID:  folderID,
		Status:    NoteStatusPending,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func noteUpdated(id, title, folderID string, status NoteStatus) Event {
	return Event{Kind: EventNoteUpdated, Note: &NotePayload{
		ID:       id,
		Title:    title,
		FolderID: folderID,
		Status:   status,
	}}
}

func noteDeleted(id string) Event {
	return Event{Kind: EventNoteDeleted, Note: &NotePayload{ID: id}}
}

func applyAll(s *Store, events ...Event) {
	for _, ev := range events {
		s.Apply(ev)
	}
}

func snapshotFolder(t *testing.T, snap Snapshot, id string) FolderView {
	t.Helper()
	for _, f := range snap.Folders {
		if f.ID == id {
			return f
		}
	}
	t.Fatalf("folder %s not in snapshot", id)
	return FolderView{}
}

func snapshotNote(t *testing.T, snap Snapshot, id string) NoteView {
	t.Helper()
	for _, n := range snap.Notes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("note %s not in snapshot", id)
	return NoteView{}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
