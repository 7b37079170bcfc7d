package snapshotapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/echoscribe/notesync/internal/notesync"
)

// StateSource is the read-only view the rendering boundary observes. The
// server never mutates the store; mutation endpoints belong to the remote API,
// not to this process.
type StateSource interface {
	Snapshot() notesync.Snapshot
	ResolvePath(folderID string) ([]notesync.PathSegment, bool)
}

type Server struct {
	source StateSource
}

func NewServer(source StateSource) *Server {
	return &Server{source: source}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "read-only surface")
		return
	}
	if r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/v1/snapshot" {
		writeJSON(w, http.StatusOK, s.source.Snapshot())
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) == 4 && parts[0] == "v1" && parts[1] == "folders" && parts[3] == "path" {
		folderID := parts[2]
		path, ok := s.source.ResolvePath(folderID)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown folder id")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"folderId": folderID, "path": path})
		return
	}
	writeError(w, http.StatusNotFound, "not_found", "route not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
