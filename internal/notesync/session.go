package notesync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type SessionOptions struct {
	Remote          RemoteClient
	Logger          zerolog.Logger
	GracePeriod     time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	QueueCapacity   int
	OnDeleteError   func(kind DeleteKind, id string, err error)
}

// Session is the explicit context object owning one synchronizer instance:
// store, queue, reconcile loop, mutation coordinator, grace deleter and job
// poller, with an init/dispose lifecycle tied to the owning UI session. There
// is no package-level state.
type Session struct {
	store       *Store
	queue       *EventQueue
	engine      *Engine
	ingestor    *Ingestor
	coordinator *Coordinator
	deleter     *GraceDeleter
	poller      *Poller
	log         zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Remote == nil {
		return nil, ErrInvalidInput
	}
	logger := opts.Logger
	store := NewStoreWithOptions(StoreOptions{Logger: logger})
	queue := NewEventQueue(opts.QueueCapacity)
	ingestor, err := NewIngestor(queue, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:       store,
		queue:       queue,
		engine:      NewEngine(store, queue, logger),
		ingestor:    ingestor,
		coordinator: NewCoordinator(store, opts.Remote, logger),
		deleter: NewGraceDeleter(store, opts.Remote, GraceDeleterOptions{
			GracePeriod: opts.GracePeriod,
			OnError:     opts.OnDeleteError,
			Logger:      logger,
		}),
		poller: NewPoller(opts.Remote, PollerOptions{
			Interval:    opts.PollInterval,
			MaxAttempts: opts.PollMaxAttempts,
			Logger:      logger,
		}),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.Run(s.ctx)
	}()
	return s, nil
}

// Ingest feeds one raw push frame into the synchronizer.
func (s *Session) Ingest(ctx context.Context, raw []byte) {
	s.ingestor.Ingest(ctx, raw)
}

func (s *Session) Snapshot() Snapshot {
	return s.store.Snapshot()
}

func (s *Session) ResolvePath(folderID string) ([]PathSegment, bool) {
	return s.store.ResolvePath(folderID)
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Mutations() *Coordinator {
	return s.coordinator
}

func (s *Session) Deletions() *GraceDeleter {
	return s.deleter
}

// TrackJob watches a processing job in the background and folds its terminal
// status into the note through the event queue, so the reconcile loop stays
// the only event applier.
func (s *Session) TrackJob(jobID, noteID string) {
	if jobID == "" || noteID == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		state, err := s.poller.Await(s.ctx, jobID)
		if err != nil {
			s.log.Warn().Err(err).Str("jobId", jobID).Str("noteId", noteID).Msg("job status watch ended without terminal status")
			return
		}
		n, ok := s.store.Note(noteID)
		if !ok {
			return
		}
		s.queue.Enqueue(s.ctx, Event{Kind: EventNoteUpdated, Note: &NotePayload{
			ID:       noteID,
			Title:    n.Title,
			FolderID: n.FolderID,
			Status:   state.Status,
		}})
	}()
}

// Close cancels the reconcile loop, clears every pending grace-deletion timer
// and waits for background work to finish.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.deleter.Close()
		s.cancel()
		s.wg.Wait()
	})
}
