package notesync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Coordinator issues remote mutations and keeps the store consistent with the
// outcome. Creates are optimistic: a placeholder entry is visible immediately
// and promoted to the canonical id from the response (or rolled back on
// failure). Renames and moves touch local state only after the remote call
// succeeds, so a rejected call leaves the store untouched.
type Coordinator struct {
	store  *Store
	remote RemoteClient
	log    zerolog.Logger
}

func NewCoordinator(store *Store, remote RemoteClient, logger zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, remote: remote, log: logger}
}

func placeholderID() string {
	return "tmp_" + uuid.NewString()
}

func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, "tmp_")
}

func (c *Coordinator) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidInput
	}
	tempID := placeholderID()
	c.store.Apply(Event{Kind: EventFolderInserted, Folder: &FolderPayload{
		ID:       tempID,
		Name:     name,
		ParentID: parentID,
	}})
	res, err := c.remote.CreateFolder(ctx, name, parentID)
	if err != nil {
		c.store.rollbackFolderPlaceholder(tempID)
		c.log.Warn().Err(err).Str("name", name).Msg("folder create rejected, placeholder rolled back")
		return "", err
	}
	c.store.PromoteFolderID(tempID, res.ID)
	return res.ID, nil
}

// CreateNote returns the canonical note id and the processing job id, if the
// server started one.
func (c *Coordinator) CreateNote(ctx context.Context, title, folderID string) (MutationResult, error) {
	if strings.TrimSpace(title) == "" {
		return MutationResult{}, ErrInvalidInput
	}
	tempID := placeholderID()
	c.store.Apply(Event{Kind: EventNoteInserted, Note: &NotePayload{
		ID:        tempID,
		Title:     title,
		FolderID:  folderID,
		Status:    NoteStatusPending,
		CreatedAt: time.Now().UTC(),
	}})
	res, err := c.remote.CreateNote(ctx, title, folderID)
	if err != nil {
		c.store.rollbackNotePlaceholder(tempID)
		c.log.Warn().Err(err).Str("title", title).Msg("note create rejected, placeholder rolled back")
		return MutationResult{}, err
	}
	c.store.PromoteNoteID(tempID, res.ID)
	return res, nil
}

func (c *Coordinator) RenameFolder(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidInput
	}
	if _, ok := c.store.Folder(id); !ok {
		return ErrNotFound
	}
	if err := c.remote.RenameFolder(ctx, id, name); err != nil {
		return err
	}
	c.store.Apply(Event{Kind: EventFolderUpdated, Folder: &FolderPayload{ID: id, Name: name}})
	return nil
}

func (c *Coordinator) MoveFolder(ctx context.Context, id, parentID string) error {
	if _, ok := c.store.Folder(id); !ok {
		return ErrNotFound
	}
	if err := c.remote.MoveFolder(ctx, id, parentID); err != nil {
		return err
	}
	c.store.moveFolderLocal(id, parentID)
	return nil
}

func (c *Coordinator) RenameNote(ctx context.Context, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidInput
	}
	if _, ok := c.store.Note(id); !ok {
		return ErrNotFound
	}
	if err := c.remote.RenameNote(ctx, id, title); err != nil {
		return err
	}
	c.store.renameNoteLocal(id, title)
	return nil
}

func (c *Coordinator) MoveNote(ctx context.Context, id, folderID string) error {
	if _, ok := c.store.Note(id); !ok {
		return ErrNotFound
	}
	if err := c.remote.MoveNote(ctx, id, folderID); err != nil {
		return err
	}
	c.store.moveNoteLocal(id, folderID)
	return nil
}

func (s *Store) rollbackNotePlaceholder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNoteLocked(id, true)
}

func (s *Store) rollbackFolderPlaceholder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFolderNodeLocked(id)
}

func (s *Store) renameNoteLocal(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.noteIndex[id]; ok {
		n.Title = title
	}
}

func (s *Store) moveNoteLocal(id, folderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.noteIndex[id]
	if !ok || n.FolderID == folderID {
		return
	}
	s.adjustCountLocked(n.FolderID, -1)
	s.adjustCountLocked(folderID, 1)
	n.FolderID = folderID
}

func (s *Store) moveFolderLocal(id, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok || f.ParentID == parentID {
		return
	}
	s.reparentFolderLocked(f, parentID)
}
