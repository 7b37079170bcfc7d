package notesync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type DeleteKind string

const (
	DeleteKindNote   DeleteKind = "note"
	DeleteKindFolder DeleteKind = "folder"
)

type deleteKey struct {
	kind DeleteKind
	id   string
}

type GraceDeleterOptions struct {
	GracePeriod time.Duration
	// OnError surfaces a rejected remote delete after the item has been
	// restored to visibility. Optional.
	OnError func(kind DeleteKind, id string, err error)
	Logger  zerolog.Logger
}

// GraceDeleter is the per-item cancellable delayed-delete state machine:
// Visible -> PendingDeletion (hidden in the snapshot, timer armed) -> either
// Cancelled (timer stopped, item visible again, no remote call) or Committed
// (one remote delete; the store entry is removed on success and restored on
// failure). Items are tracked independently, so bulk deletes cancel per id.
type GraceDeleter struct {
	store   *Store
	remote  RemoteClient
	grace   time.Duration
	onError func(kind DeleteKind, id string, err error)
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[deleteKey]*time.Timer
	closed  bool
}

func NewGraceDeleter(store *Store, remote RemoteClient, opts GraceDeleterOptions) *GraceDeleter {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &GraceDeleter{
		store:   store,
		remote:  remote,
		grace:   grace,
		onError: opts.OnError,
		log:     opts.Logger,
		pending: map[deleteKey]*time.Timer{},
	}
}

// SetGracePeriod changes the delay for deletions requested from now on.
// Already-armed timers keep their original deadline.
func (d *GraceDeleter) SetGracePeriod(grace time.Duration) {
	if grace <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grace = grace
}

// RequestDelete hides the item and arms its timer. A duplicate request for an
// item already pending deletion is an idempotent no-op.
func (d *GraceDeleter) RequestDelete(kind DeleteKind, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSessionClosed
	}
	key := deleteKey{kind: kind, id: id}
	if _, dup := d.pending[key]; dup {
		return nil
	}
	if !d.hide(kind, id) {
		return ErrNotFound
	}
	d.pending[key] = time.AfterFunc(d.grace, func() {
		d.commit(kind, id)
	})
	return nil
}

// Cancel stops a pending deletion before its timer fires and restores
// visibility. It reports whether a pending deletion existed.
func (d *GraceDeleter) Cancel(kind DeleteKind, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := deleteKey{kind: kind, id: id}
	timer, ok := d.pending[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(d.pending, key)
	d.show(kind, id)
	return true
}

func (d *GraceDeleter) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops every pending timer so no remote delete fires after the owning
// session is torn down.
func (d *GraceDeleter) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for key, timer := range d.pending {
		timer.Stop()
		d.show(key.kind, key.id)
	}
	d.pending = map[deleteKey]*time.Timer{}
}

func (d *GraceDeleter) commit(kind DeleteKind, id string) {
	key := deleteKey{kind: kind, id: id}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if _, ok := d.pending[key]; !ok {
		// Lost the race with Cancel or Close.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	var err error
	switch kind {
	case DeleteKindNote:
		err = d.remote.DeleteNote(context.Background(), id)
	case DeleteKindFolder:
		err = d.remote.DeleteFolder(context.Background(), id)
	default:
		err = ErrInvalidInput
	}
	if err != nil {
		d.show(kind, id)
		d.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("remote delete rejected, item restored")
		if d.onError != nil {
			d.onError(kind, id, err)
		}
		return
	}
	switch kind {
	case DeleteKindNote:
		d.store.Apply(Event{Kind: EventNoteDeleted, Note: &NotePayload{ID: id}})
	case DeleteKindFolder:
		d.store.Apply(Event{Kind: EventFolderDeleted, Folder: &FolderPayload{ID: id}})
	}
}

func (d *GraceDeleter) hide(kind DeleteKind, id string) bool {
	if kind == DeleteKindNote {
		return d.store.setPendingNote(id, true)
	}
	return d.store.setPendingFolder(id, true)
}

func (d *GraceDeleter) show(kind DeleteKind, id string) {
	if kind == DeleteKindNote {
		d.store.setPendingNote(id, false)
	} else {
		d.store.setPendingFolder(id, false)
	}
}
