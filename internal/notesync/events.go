package notesync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type EventKind string

const (
	EventFolderInserted EventKind = "folder.inserted"
	EventFolderUpdated  EventKind = "folder.updated"
	EventFolderDeleted  EventKind = "folder.deleted"
	EventNoteInserted   EventKind = "note.inserted"
	EventNoteUpdated    EventKind = "note.updated"
	EventNoteDeleted    EventKind = "note.deleted"
)

type FolderPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

type NotePayload struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	FolderID  string     `json:"folderId,omitempty"`
	Status    NoteStatus `json:"status,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
}

// Event is the closed union delivered by the push channel. Exactly one of
// Folder or Note is set, matching the kind prefix.
type Event struct {
	Kind   EventKind      `json:"type"`
	Folder *FolderPayload `json:"folder,omitempty"`
	Note   *NotePayload   `json:"note,omitempty"`
}

const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": [
        "folder.inserted", "folder.updated", "folder.deleted",
        "note.inserted", "note.updated", "note.deleted"
      ]
    }
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"pattern": "^folder\\."}}, "required": ["type"]},
      "then": {
        "required": ["folder"],
        "properties": {
          "folder": {
            "type": "object",
            "required": ["id"],
            "properties": {"id": {"type": "string", "minLength": 1}}
          }
        }
      }
    },
    {
      "if": {"properties": {"type": {"pattern": "^note\\."}}, "required": ["type"]},
      "then": {
        "required": ["note"],
        "properties": {
          "note": {
            "type": "object",
            "required": ["id"],
            "properties": {"id": {"type": "string", "minLength": 1}}
          }
        }
      }
    }
  ]
}`

// Ingestor decodes raw push frames into typed events and forwards them to the
// event queue, one at a time. Malformed frames are dropped and logged; they
// never surface to the transport.
type Ingestor struct {
	queue  *EventQueue
	schema *jsonschema.Schema
	log    zerolog.Logger
}

func NewIngestor(queue *EventQueue, logger zerolog.Logger) (*Ingestor, error) {
	if queue == nil {
		return nil, ErrInvalidInput
	}
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
	if err != nil {
		return nil, err
	}
	if err := compiler.AddResource("event.schema.json", doc); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("event.schema.json")
	if err != nil {
		return nil, err
	}
	return &Ingestor{queue: queue, schema: schema, log: logger}, nil
}

func (i *Ingestor) Ingest(ctx context.Context, raw []byte) {
	ev, err := i.decode(raw)
	if err != nil {
		i.log.Warn().Err(err).Str("frame", truncateFrame(raw)).Msg("dropping malformed push event")
		return
	}
	if !i.queue.Enqueue(ctx, ev) {
		i.log.Warn().Str("kind", string(ev.Kind)).Msg("event queue rejected push event")
	}
}

func (i *Ingestor) decode(raw []byte) (Event, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Event{}, ErrMalformedEvent
	}
	if err := i.schema.Validate(inst); err != nil {
		return Event{}, ErrMalformedEvent
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, ErrMalformedEvent
	}
	switch ev.Kind {
	case EventFolderInserted, EventFolderUpdated, EventFolderDeleted:
		if ev.Folder == nil || ev.Folder.ID == "" {
			return Event{}, ErrMalformedEvent
		}
	case EventNoteInserted, EventNoteUpdated, EventNoteDeleted:
		if ev.Note == nil || ev.Note.ID == "" {
			return Event{}, ErrMalformedEvent
		}
	default:
		return Event{}, ErrMalformedEvent
	}
	return ev, nil
}

func truncateFrame(raw []byte) string {
	const max = 256
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
