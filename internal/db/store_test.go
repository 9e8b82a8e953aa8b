// Package db provides unit tests for the Post store.
package db

import (
	"testing"
	"time"

	"github.com/kimhsiao/postnexus/internal/errors"
	"github.com/kimhsiao/postnexus/internal/models"
)

// setupStore creates a migrated in-memory store for testing.
func setupStore(t *testing.T) *Store {
	t.Helper()

	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return NewStore(database)
}

func mustInsert(t *testing.T, s *Store, draft *models.Draft) int64 {
	t.Helper()
	id, err := s.Insert(draft)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return id
}

func TestInsertAndGetByID(t *testing.T) {
	s := setupStore(t)

	draft := &models.Draft{Title: "First", Body: "Hello World", ImageURI: "content://img/1"}
	id := mustInsert(t, s, draft)
	if id <= 0 {
		t.Fatalf("Insert returned non-positive id %d", id)
	}

	got, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.Title != draft.Title || got.Body != draft.Body || got.ImageURI != draft.ImageURI {
		t.Errorf("stored fields differ from draft: %+v", got)
	}
	if got.Uploaded || got.UploadRef != "" {
		t.Errorf("new post must not be uploaded: uploaded=%v ref=%q", got.Uploaded, got.UploadRef)
	}
	if got.CreatedAt <= 0 || got.UpdatedAt != got.CreatedAt {
		t.Errorf("timestamps not set at creation: created=%d updated=%d", got.CreatedAt, got.UpdatedAt)
	}
}

func TestInsertRejectsEmptyBody(t *testing.T) {
	s := setupStore(t)

	_, err := s.Insert(&models.Draft{Title: "T", Body: "  "})
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetByID(41)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetAllNewestFirst(t *testing.T) {
	s := setupStore(t)

	first := mustInsert(t, s, &models.Draft{Body: "first"})
	time.Sleep(2 * time.Millisecond)
	second := mustInsert(t, s, &models.Draft{Body: "second"})
	time.Sleep(2 * time.Millisecond)
	third := mustInsert(t, s, &models.Draft{Body: "third"})

	posts, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("GetAll returned %d posts, want 3", len(posts))
	}
	if posts[0].ID != third || posts[1].ID != second || posts[2].ID != first {
		t.Errorf("order = [%d %d %d], want [%d %d %d]",
			posts[0].ID, posts[1].ID, posts[2].ID, third, second, first)
	}

	// Updating the oldest post moves it to the front.
	time.Sleep(2 * time.Millisecond)
	p, err := s.GetByID(first)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	p.Body = "first, edited"
	if err := s.Update(p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	posts, err = s.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if posts[0].ID != first {
		t.Errorf("updated post %d should be first, got %d", first, posts[0].ID)
	}
}

func TestSearchEmptyQueryBehavesAsGetAll(t *testing.T) {
	s := setupStore(t)

	mustInsert(t, s, &models.Draft{Title: "A", Body: "alpha"})
	mustInsert(t, s, &models.Draft{Title: "B", Body: "beta"})

	all, err := s.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	found, err := s.Search("   ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(found) != len(all) {
		t.Fatalf("Search(\"\") returned %d posts, GetAll returned %d", len(found), len(all))
	}
	for i := range all {
		if found[i].ID != all[i].ID {
			t.Errorf("result %d: Search id %d != GetAll id %d", i, found[i].ID, all[i].ID)
		}
	}
}

func TestSearchCaseInsensitiveSubstring(t *testing.T) {
	s := setupStore(t)

	target := mustInsert(t, s, &models.Draft{Title: "Greeting", Body: "Hello World"})
	mustInsert(t, s, &models.Draft{Title: "Other", Body: "nothing to see"})
	byTitle := mustInsert(t, s, &models.Draft{Title: "WORLD news", Body: "irrelevant"})

	found, err := s.Search("world")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	ids := make(map[int64]bool)
	for _, p := range found {
		ids[p.ID] = true
	}
	if !ids[target] {
		t.Errorf("search missed body match %d", target)
	}
	if !ids[byTitle] {
		t.Errorf("search missed title match %d", byTitle)
	}
	if len(found) != 2 {
		t.Errorf("Search returned %d posts, want 2", len(found))
	}
}

func TestSearchEscapesLikeMetacharacters(t *testing.T) {
	s := setupStore(t)

	literal := mustInsert(t, s, &models.Draft{Body: "progress: 50% done"})
	mustInsert(t, s, &models.Draft{Body: "no percent here"})

	found, err := s.Search("50%")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != literal {
		t.Errorf("Search(\"50%%\") = %d posts, want only post %d", len(found), literal)
	}
}

func TestUpdateEmptyBodyLeavesRecordUnchanged(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Title: "T", Body: "original"})

	p, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	p.Body = ""
	if err := s.Update(p); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}

	stored, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Body != "original" {
		t.Errorf("failed update mutated the record: body = %q", stored.Body)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := setupStore(t)

	err := s.Update(&models.Post{ID: 99, Body: "content", CreatedAt: 1, UpdatedAt: 1})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateDoesNotTouchUploadState(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Body: "content"})
	if err := s.MarkUploaded(id, "ref-1"); err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}

	p, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	p.Body = "edited after upload"
	if err := s.Update(p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stored, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.Uploaded || stored.UploadRef != "ref-1" {
		t.Errorf("Update changed upload state: uploaded=%v ref=%q", stored.Uploaded, stored.UploadRef)
	}
}

func TestDeleteByID(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Body: "content"})

	count, err := s.DeleteByID(id)
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if count != 1 {
		t.Errorf("DeleteByID removed %d rows, want 1", count)
	}

	count, err = s.DeleteByID(id)
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second DeleteByID removed %d rows, want 0", count)
	}
}

func TestDeleteByIDsIgnoresMissingAndIsIdempotent(t *testing.T) {
	s := setupStore(t)

	a := mustInsert(t, s, &models.Draft{Body: "a"})
	b := mustInsert(t, s, &models.Draft{Body: "b"})
	keep := mustInsert(t, s, &models.Draft{Body: "keep"})

	ids := []int64{a, b, 9999}
	count, err := s.DeleteByIDs(ids)
	if err != nil {
		t.Fatalf("DeleteByIDs failed: %v", err)
	}
	if count != 2 {
		t.Errorf("DeleteByIDs removed %d rows, want 2", count)
	}

	count, err = s.DeleteByIDs(ids)
	if err != nil {
		t.Fatalf("second DeleteByIDs failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second DeleteByIDs removed %d rows, want 0", count)
	}

	if _, err := s.GetByID(keep); err != nil {
		t.Errorf("DeleteByIDs removed an unrelated post: %v", err)
	}
}

func TestDeleteByIDsEmptySlice(t *testing.T) {
	s := setupStore(t)

	count, err := s.DeleteByIDs(nil)
	if err != nil {
		t.Fatalf("DeleteByIDs(nil) failed: %v", err)
	}
	if count != 0 {
		t.Errorf("DeleteByIDs(nil) removed %d rows, want 0", count)
	}
}

func TestIDsAreNotReusedAfterDelete(t *testing.T) {
	s := setupStore(t)

	first := mustInsert(t, s, &models.Draft{Body: "a"})
	if _, err := s.DeleteByID(first); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}

	second := mustInsert(t, s, &models.Draft{Body: "b"})
	if second <= first {
		t.Errorf("id %d was reused after deleting %d", second, first)
	}
}

func TestMarkUploadedIdempotentRetry(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Body: "content"})

	if err := s.MarkUploaded(id, "ref-1"); err != nil {
		t.Fatalf("first MarkUploaded failed: %v", err)
	}
	if err := s.MarkUploaded(id, "ref-1"); err != nil {
		t.Fatalf("same-ref retry failed: %v", err)
	}

	p, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !p.Uploaded || p.UploadRef != "ref-1" {
		t.Errorf("uploaded=%v ref=%q, want true/ref-1", p.Uploaded, p.UploadRef)
	}
}

func TestMarkUploadedConflictKeepsFirstRef(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Body: "content"})

	if err := s.MarkUploaded(id, "ref-1"); err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	err := s.MarkUploaded(id, "ref-2")
	if !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	p, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if p.UploadRef != "ref-1" {
		t.Errorf("conflict overwrote the stored ref: %q", p.UploadRef)
	}
}

func TestMarkUploadedNotFound(t *testing.T) {
	s := setupStore(t)

	if err := s.MarkUploaded(123, "ref"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestMarkUploadedRejectsEmptyRef(t *testing.T) {
	s := setupStore(t)

	id := mustInsert(t, s, &models.Draft{Body: "content"})
	if err := s.MarkUploaded(id, ""); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}
