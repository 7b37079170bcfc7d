package notesync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Engine drains the event queue and applies each event to the store. Exactly
// one Run loop consumes the queue, so no two apply steps interleave; safety
// under duplicate and out-of-order delivery comes from Apply being idempotent,
// not from any ordering contract.
type Engine struct {
	store *Store
	queue *EventQueue
	log   zerolog.Logger
}

func NewEngine(store *Store, queue *EventQueue, logger zerolog.Logger) *Engine {
	return &Engine{store: store, queue: queue, log: logger}
}

func (e *Engine) Run(ctx context.Context) {
	for {
		ev, ok := e.queue.Dequeue(ctx)
		if !ok {
			return
		}
		e.store.Apply(ev)
	}
}

// Apply is the idempotent state transition for a single authoritative event.
// Replaying any event sequence, with duplicates, converges on the same state.
func (s *Store) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case EventNoteInserted:
		s.applyNoteInsertedLocked(*ev.Note)
	case EventNoteUpdated:
		s.applyNoteUpdatedLocked(*ev.Note)
	case EventNoteDeleted:
		s.applyNoteDeletedLocked(ev.Note.ID)
	case EventFolderInserted:
		s.applyFolderInsertedLocked(*ev.Folder)
	case EventFolderUpdated:
		s.applyFolderUpdatedLocked(*ev.Folder)
	case EventFolderDeleted:
		s.applyFolderDeletedLocked(ev.Folder.ID)
	default:
		s.log.Warn().Str("kind", string(ev.Kind)).Msg("ignoring event of unknown kind")
	}
}

func (s *Store) applyNoteInsertedLocked(p NotePayload) {
	if existing, ok := s.noteIndex[p.ID]; ok {
		// Duplicate delivery, or a placeholder already promoted to this id.
		// Update in place; adjust counts only when the folder actually changed
		// so replay cannot double-count.
		if p.FolderID != existing.FolderID {
			s.adjustCountLocked(existing.FolderID, -1)
			s.adjustCountLocked(p.FolderID, 1)
			existing.FolderID = p.FolderID
		}
		if p.Title != "" {
			existing.Title = p.Title
		}
		if p.Status != "" {
			existing.Status = p.Status
		}
		if !p.CreatedAt.IsZero() {
			existing.CreatedAt = p.CreatedAt
		}
		return
	}
	n := &Note{
		ID:        p.ID,
		Title:     p.Title,
		FolderID:  p.FolderID,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
	if n.Status == "" {
		n.Status = NoteStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notes = append([]*Note{n}, s.notes...)
	s.noteIndex[n.ID] = n
	s.adjustCountLocked(n.FolderID, 1)
}

func (s *Store) applyNoteUpdatedLocked(p NotePayload) {
	n, ok := s.noteIndex[p.ID]
	if !ok {
		s.log.Debug().Str("noteId", p.ID).Msg("update for unknown note, skipping")
		return
	}
	if p.FolderID != n.FolderID {
		s.adjustCountLocked(n.FolderID, -1)
		s.adjustCountLocked(p.FolderID, 1)
		n.FolderID = p.FolderID
	}
	if p.Title != "" {
		n.Title = p.Title
	}
	if p.Status != "" {
		n.Status = p.Status
	}
	if !p.CreatedAt.IsZero() {
		n.CreatedAt = p.CreatedAt
	}
}

func (s *Store) applyNoteDeletedLocked(id string) {
	if _, ok := s.noteIndex[id]; !ok {
		// Tolerates duplicate delete delivery.
		return
	}
	s.removeNoteLocked(id, true)
}

func (s *Store) applyFolderInsertedLocked(p FolderPayload) {
	if existing, ok := s.folders[p.ID]; ok {
		if p.Name != "" && p.Name != existing.Name {
			existing.Name = p.Name
			s.invalidatePathLocked(existing.ID)
		}
		if p.ParentID != existing.ParentID {
			s.reparentFolderLocked(existing, p.ParentID)
		}
		return
	}
	f := &Folder{ID: p.ID, Name: p.Name, ParentID: p.ParentID}
	// Notes may have been observed before their folder; derive the direct
	// membership count from the current collection.
	for _, n := range s.notes {
		if n.FolderID == f.ID {
			f.Count++
		}
	}
	s.folders[f.ID] = f
	if f.ParentID != "" {
		if _, known := s.folders[f.ParentID]; known {
			s.attachChildLocked(f.ParentID, f.ID)
		}
		// Unknown parent: the folder stays reachable via the flat map only.
	}
	// Adopt orphans that were observed before this folder arrived, and drop
	// their stale partial breadcrumbs.
	for _, candidate := range s.folders {
		if candidate.ID != f.ID && candidate.ParentID == f.ID {
			s.attachChildLocked(f.ID, candidate.ID)
			s.invalidatePathLocked(candidate.ID)
		}
	}
	delete(s.pathCache, f.ID)
}

func (s *Store) applyFolderUpdatedLocked(p FolderPayload) {
	f, ok := s.folders[p.ID]
	if !ok {
		s.log.Debug().Str("folderId", p.ID).Msg("update for unknown folder, skipping")
		return
	}
	if p.Name != "" && p.Name != f.Name {
		f.Name = p.Name
		s.invalidatePathLocked(f.ID)
	}
}

func (s *Store) applyFolderDeletedLocked(id string) {
	root, ok := s.folders[id]
	if !ok {
		return
	}
	removed := map[string]bool{}
	for _, did := range s.descendantIDsLocked(id) {
		removed[did] = true
	}
	if root.ParentID != "" {
		s.detachChildLocked(root.ParentID, id)
	}
	for did := range removed {
		delete(s.folders, did)
		delete(s.children, did)
		delete(s.pendingFolders, did)
		delete(s.pathCache, did)
	}
	for parentID, kids := range s.children {
		filtered := kids[:0]
		for _, kid := range kids {
			if !removed[kid] {
				filtered = append(filtered, kid)
			}
		}
		s.children[parentID] = filtered
	}
	// Only notes filed directly under the deleted root are unfiled. Notes under
	// deleted descendants keep their folder id; FolderID is a weak key, so the
	// dangling value is harmless. See DESIGN.md.
	for _, n := range s.notes {
		if n.FolderID == id {
			n.FolderID = ""
		}
	}
}

func (s *Store) reparentFolderLocked(f *Folder, newParentID string) {
	if f.ParentID != "" {
		s.detachChildLocked(f.ParentID, f.ID)
	}
	f.ParentID = newParentID
	if newParentID != "" {
		if _, known := s.folders[newParentID]; known {
			s.attachChildLocked(newParentID, f.ID)
		}
	}
	s.invalidatePathLocked(f.ID)
}
