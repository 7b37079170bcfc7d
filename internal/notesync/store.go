package notesync

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type NoteStatus string

const (
	NoteStatusPending    NoteStatus = "pending"
	NoteStatusProcessing NoteStatus = "processing"
	NoteStatusCompleted  NoteStatus = "completed"
	NoteStatusFailed     NoteStatus = "failed"
)

func (s NoteStatus) Terminal() bool {
	return s == NoteStatusCompleted || s == NoteStatusFailed
}

// Folder is a named node in the user's hierarchy. ParentID is empty for roots.
// Count tracks direct note membership only, never descendants.
type Folder struct {
	ID       string
	Name     string
	ParentID string
	Count    int
}

// Note is a processed artifact optionally filed under a folder. FolderID is a
// weak lookup key, not an ownership edge.
type Note struct {
	ID        string
	Title     string
	FolderID  string
	Status    NoteStatus
	CreatedAt time.Time
}

type PathSegment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FolderView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ParentID        string   `json:"parentId,omitempty"`
	Count           int      `json:"count"`
	Subfolders      []string `json:"subfolders,omitempty"`
	PendingDeletion bool     `json:"pendingDeletion,omitempty"`
}

type NoteView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	FolderID        string     `json:"folderId,omitempty"`
	Status          NoteStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	PendingDeletion bool       `json:"pendingDeletion,omitempty"`
}

// Snapshot is a read-only point-in-time copy of the store for the rendering
// boundary. Mutating a snapshot never touches the store.
type Snapshot struct {
	Folders []FolderView `json:"folders"`
	Notes   []NoteView   `json:"notes"`
}

type StoreOptions struct {
	Logger zerolog.Logger
}

// Store is the canonical in-memory state: a flat folder map with a denormalized
// parent-to-children cache, plus the ordered note collection. It is the single
// mutable resource; only the reconcile rules and the mutation coordinator write
// to it, and readers observe it through Snapshot.
type Store struct {
	mu             sync.RWMutex
	folders        map[string]*Folder
	children       map[string][]string
	notes          []*Note
	noteIndex      map[string]*Note
	pendingNotes   map[string]bool
	pendingFolders map[string]bool
	pathCache      map[string][]PathSegment
	log            zerolog.Logger
}

func NewStore() *Store {
	return NewStoreWithOptions(StoreOptions{Logger: zerolog.Nop()})
}

func NewStoreWithOptions(opts StoreOptions) *Store {
	return &Store{
		folders:        map[string]*Folder{},
		children:       map[string][]string{},
		notes:          []*Note{},
		noteIndex:      map[string]*Note{},
		pendingNotes:   map[string]bool{},
		pendingFolders: map[string]bool{},
		pathCache:      map[string][]PathSegment{},
		log:            opts.Logger,
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folders := make([]FolderView, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, FolderView{
			ID:              f.ID,
			Name:            f.Name,
			ParentID:        f.ParentID,
			Count:           f.Count,
			Subfolders:      append([]string(nil), s.children[f.ID]...),
			PendingDeletion: s.pendingFolders[f.ID],
		})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })

	notes := make([]NoteView, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, NoteView{
			ID:              n.ID,
			Title:           n.Title,
			FolderID:        n.FolderID,
			Status:          n.Status,
			CreatedAt:       n.CreatedAt,
			PendingDeletion: s.pendingNotes[n.ID],
		})
	}
	return Snapshot{Folders: folders, Notes: notes}
}

func (s *Store) Folder(id string) (Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return Folder{}, false
	}
	return *f, true
}

func (s *Store) Note(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.noteIndex[id]
	if !ok {
		return Note{}, false
	}
	return *n, true
}

func (s *Store) NoteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func (s *Store) FolderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.folders)
}

// PromoteNoteID replaces a placeholder note id with the canonical id from the
// mutation response, in place and without producing a duplicate entry. If the
// authoritative insert event arrived first the placeholder is discarded.
func (s *Store) PromoteNoteID(tempID, canonicalID string) {
	if tempID == "" || canonicalID == "" || tempID == canonicalID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.noteIndex[tempID]
	if !ok {
		return
	}
	if _, exists := s.noteIndex[canonicalID]; exists {
		s.removeNoteLocked(tempID, true)
		return
	}
	delete(s.noteIndex, tempID)
	n.ID = canonicalID
	s.noteIndex[canonicalID] = n
	if s.pendingNotes[tempID] {
		delete(s.pendingNotes, tempID)
		s.pendingNotes[canonicalID] = true
	}
}

// PromoteFolderID is the folder counterpart of PromoteNoteID. Children and
// notes referencing the placeholder id are re-pointed at the canonical id.
func (s *Store) PromoteFolderID(tempID, canonicalID string) {
	if tempID == "" || canonicalID == "" || tempID == canonicalID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[tempID]
	if !ok {
		return
	}
	if _, exists := s.folders[canonicalID]; exists {
		s.removeFolderNodeLocked(tempID)
		return
	}
	delete(s.folders, tempID)
	f.ID = canonicalID
	s.folders[canonicalID] = f
	if kids, ok := s.children[tempID]; ok {
		delete(s.children, tempID)
		s.children[canonicalID] = kids
	}
	if f.ParentID != "" {
		s.replaceChildLocked(f.ParentID, tempID, canonicalID)
	}
	for _, child := range s.folders {
		if child.ParentID == tempID {
			child.ParentID = canonicalID
		}
	}
	for _, n := range s.notes {
		if n.FolderID == tempID {
			n.FolderID = canonicalID
		}
	}
	if s.pendingFolders[tempID] {
		delete(s.pendingFolders, tempID)
		s.pendingFolders[canonicalID] = true
	}
	s.invalidatePathLocked(canonicalID)
	delete(s.pathCache, tempID)
}

func (s *Store) setPendingNote(id string, pending bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.noteIndex[id]; !ok {
		return false
	}
	if pending {
		s.pendingNotes[id] = true
	} else {
		delete(s.pendingNotes, id)
	}
	return true
}

func (s *Store) setPendingFolder(id string, pending bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return false
	}
	if pending {
		s.pendingFolders[id] = true
	} else {
		delete(s.pendingFolders, id)
	}
	return true
}

func (s *Store) adjustCountLocked(folderID string, delta int) {
	if folderID == "" {
		return
	}
	f, ok := s.folders[folderID]
	if !ok {
		return
	}
	f.Count += delta
	if f.Count < 0 {
		f.Count = 0
	}
}

func (s *Store) attachChildLocked(parentID, childID string) {
	for _, id := range s.children[parentID] {
		if id == childID {
			return
		}
	}
	s.children[parentID] = append(s.children[parentID], childID)
}

func (s *Store) detachChildLocked(parentID, childID string) {
	kids := s.children[parentID]
	for i, id := range kids {
		if id == childID {
			s.children[parentID] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func (s *Store) replaceChildLocked(parentID, oldID, newID string) {
	for i, id := range s.children[parentID] {
		if id == oldID {
			s.children[parentID][i] = newID
			return
		}
	}
	s.children[parentID] = append(s.children[parentID], newID)
}

// descendantIDsLocked returns rootID plus every folder transitively parented
// under it, walking the children cache (kept complete by orphan adoption on
// insert) in breadth-first order. Out-of-order insert replay can leave a
// transient parent cycle, so visited ids are skipped.
func (s *Store) descendantIDsLocked(rootID string) []string {
	seen := map[string]bool{rootID: true}
	ids := []string{rootID}
	for i := 0; i < len(ids); i++ {
		for _, kid := range s.children[ids[i]] {
			if !seen[kid] {
				seen[kid] = true
				ids = append(ids, kid)
			}
		}
	}
	return ids
}

// removeNoteLocked removes a note from both the ordered list and the index.
// When adjustCount is set the owning folder's direct count is decremented.
func (s *Store) removeNoteLocked(id string, adjustCount bool) {
	n, ok := s.noteIndex[id]
	if !ok {
		return
	}
	delete(s.noteIndex, id)
	delete(s.pendingNotes, id)
	for i, candidate := range s.notes {
		if candidate.ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	if adjustCount {
		s.adjustCountLocked(n.FolderID, -1)
	}
}

// removeFolderNodeLocked drops a single folder node without touching its
// descendants. Used for placeholder rollback and promotion collisions.
func (s *Store) removeFolderNodeLocked(id string) {
	f, ok := s.folders[id]
	if !ok {
		return
	}
	delete(s.folders, id)
	delete(s.children, id)
	delete(s.pendingFolders, id)
	delete(s.pathCache, id)
	if f.ParentID != "" {
		s.detachChildLocked(f.ParentID, id)
	}
}

func (s *Store) invalidatePathLocked(rootID string) {
	for _, id := range s.descendantIDsLocked(rootID) {
		delete(s.pathCache, id)
	}
}
