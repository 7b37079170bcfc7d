package notesync

import "testing"

func TestResolvePathRootToLeaf(t *testing.T) {
	store := NewStore()
	applyAll(store,
		folderInserted("A", "Work", ""),
		folderInserted("B", "Meetings", "A"),
		folderInserted("C", "Archive", "B"),
	)

	path, ok := store.ResolvePath("C")
	if !ok {
		t.Fatal("expected path for known folder")
	}
	want := []PathSegment{{ID: "A", Name: "Work"}, {ID: "B", Name: "Meetings"}, {ID: "C", Name: "Archive"}}
	if len(path) != len(want) {
		t.Fatalf("expected %d segments, got %v", len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("segment %d: got %+v, want %+v", i, path[i], want[i])
		}
	}
}

func TestResolvePathUnknownFolder(t *testing.T) {
	store := NewStore()
	if _, ok := store.ResolvePath("ghost"); ok {
		t.Fatal("expected no path for unknown folder")
	}
}

func TestResolvePathBrokenChainIsPartial(t *testing.T) {
	store := NewStore()
	store.Apply(folderInserted("B", "Meetings", "missing"))

	path, ok := store.ResolvePath("B")
	if !ok {
		t.Fatal("expected partial path for orphan folder")
	}
	if len(path) != 1 || path[0].ID != "B" {
		t.Fatalf("expected single segment for orphan, got %v", path)
	}
}

func TestResolvePathCacheInvalidatedOnReparent(t *testing.T) {
	store := NewStore()
	applyAll(store,
		folderInserted("A", "Work", ""),
		folderInserted("X", "Personal", ""),
		folderInserted("B", "Meetings", "A"),
	)
	if _, ok := store.ResolvePath("B"); !ok {
		t.Fatal("expected path before reparent")
	}

	store.moveFolderLocal("B", "X")

	path, ok := store.ResolvePath("B")
	if !ok || len(path) != 2 || path[0].ID != "X" {
		t.Fatalf("expected path rooted at X after reparent, got %v", path)
	}
}

func TestResolvePathSurvivesCycle(t *testing.T) {
	store := NewStore()
	applyAll(store,
		folderInserted("A", "Work", "B"),
		folderInserted("B", "Meetings", "A"),
	)
	// Must terminate even with a corrupt parent chain.
	if _, ok := store.ResolvePath("A"); !ok {
		t.Fatal("expected a path despite the cycle")
	}
}
