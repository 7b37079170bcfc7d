package notesync

// ResolvePath returns the breadcrumb chain from the root down to folderID.
// A broken parent chain yields the partial path that could be resolved; an
// unknown folderID reports ok=false. Results are cached per folder id and
// invalidated when the folder or any ancestor is renamed, re-parented or
// removed.
func (s *Store) ResolvePath(folderID string) ([]PathSegment, bool) {
	s.mu.RLock()
	if _, ok := s.folders[folderID]; !ok {
		s.mu.RUnlock()
		return nil, false
	}
	if cached, ok := s.pathCache[folderID]; ok {
		path := append([]PathSegment(nil), cached...)
		s.mu.RUnlock()
		return path, true
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folderID]; !ok {
		return nil, false
	}
	if cached, ok := s.pathCache[folderID]; ok {
		return append([]PathSegment(nil), cached...), true
	}
	path := s.resolvePathLocked(folderID)
	s.pathCache[folderID] = path
	return append([]PathSegment(nil), path...), true
}

func (s *Store) resolvePathLocked(folderID string) []PathSegment {
	var path []PathSegment
	visited := map[string]bool{}
	for id := folderID; id != ""; {
		if visited[id] {
			break
		}
		visited[id] = true
		f, ok := s.folders[id]
		if !ok {
			// Parent not observed yet: partial path, not an error.
			break
		}
		path = append([]PathSegment{{ID: f.ID, Name: f.Name}}, path...)
		id = f.ParentID
	}
	return path
}
