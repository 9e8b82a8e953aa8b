// Package db provides CRUD storage operations for Post records.
package db

import (
	"database/sql"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/postnexus/internal/errors"
	"github.com/kimhsiao/postnexus/internal/models"
)

// Store is the durable keyed store for Post records. It is the single shared
// mutable resource of the core; the Repository is its sole gateway.
//
// Writes take the exclusive lock and are applied as one atomic step each.
// Reads share the lock and therefore always observe a fully applied state.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a Store over an opened database.
func NewStore(db *DB) *Store {
	return &Store{db: db.DB}
}

const postColumns = "id, title, body, image_uri, created_at, updated_at, uploaded, upload_ref"

// Insert validates the draft, assigns a fresh id and timestamps, and persists
// the record. Ids are assigned by SQLite AUTOINCREMENT and never reused, even
// after deletion.
func (s *Store) Insert(draft *models.Draft) (int64, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `
	INSERT INTO posts (title, body, image_uri, created_at, updated_at, uploaded, upload_ref)
	VALUES (?, ?, ?, ?, ?, 0, NULL)
	`
	res, err := s.db.Exec(query, draft.Title, draft.Body, nullable(draft.ImageURI), now, now)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to insert post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to read inserted id", err)
	}
	return id, nil
}

// GetByID retrieves a post by id.
func (s *Store) GetByID(id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	post, err := scanPost(s.db.QueryRow(query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrNotFound, "post %d not found", id)
		}
		return nil, errors.Wrap(errors.ErrStorage, "failed to get post", err)
	}
	return post, nil
}

// GetAll returns every post, newest first by updated_at.
func (s *Store) GetAll() ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + postColumns + ` FROM posts ORDER BY updated_at DESC, id DESC`
	return s.queryPosts(query)
}

// Search returns posts whose title or body contains query as a
// case-insensitive substring, newest first. An empty or blank query behaves
// as GetAll.
func (s *Store) Search(query string) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.GetAll()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// SQLite LIKE is case-insensitive for ASCII. Escape the LIKE
	// metacharacters so they match literally.
	pattern := "%" + escapeLike(query) + "%"
	sqlQuery := `
	SELECT ` + postColumns + ` FROM posts
	WHERE title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\'
	ORDER BY updated_at DESC, id DESC
	`
	return s.queryPosts(sqlQuery, pattern, pattern)
}

// Update overwrites the stored record's title, body and image by id and
// refreshes updated_at. The uploaded flag and upload_ref are never touched by
// Update.
func (s *Store) Update(post *models.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post.Touch()
	query := `
	UPDATE posts
	SET title = ?, body = ?, image_uri = ?, updated_at = ?
	WHERE id = ?
	`
	res, err := s.db.Exec(query, post.Title, post.Body, nullable(post.ImageURI), post.UpdatedAt, post.ID)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to update post", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to read affected rows", err)
	}
	if rows == 0 {
		return errors.Newf(errors.ErrNotFound, "post %d not found", post.ID)
	}
	return nil
}

// DeleteByID removes a post permanently. Returns the number of rows removed
// (0 or 1).
func (s *Store) DeleteByID(id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to delete post", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to read affected rows", err)
	}
	return rows, nil
}

// DeleteByIDs removes the given posts in a single transaction. Missing ids
// are ignored; the returned count reflects only matched rows. On failure no
// row is removed.
func (s *Store) DeleteByIDs(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := tx.Exec(`DELETE FROM posts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to delete posts", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to read affected rows", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrStorage, "failed to commit delete", err)
	}
	return rows, nil
}

// MarkUploaded sets uploaded=true and records the remote reference, atomically
// with respect to any concurrent reader. The transition is monotonic:
//   - not uploaded      -> uploaded with ref
//   - uploaded, same ref -> no-op success (idempotent retry)
//   - uploaded, other ref -> Conflict; the stored ref is left intact
func (s *Store) MarkUploaded(id int64, uploadRef string) error {
	if uploadRef == "" {
		return errors.New(errors.ErrValidation, "upload reference must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var uploaded bool
	var storedRef sql.NullString
	err = tx.QueryRow(`SELECT uploaded, upload_ref FROM posts WHERE id = ?`, id).Scan(&uploaded, &storedRef)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.Newf(errors.ErrNotFound, "post %d not found", id)
		}
		return errors.Wrap(errors.ErrStorage, "failed to read upload state", err)
	}

	if uploaded {
		if storedRef.Valid && storedRef.String == uploadRef {
			return nil
		}
		return errors.Newf(errors.ErrConflict,
			"post %d already uploaded with reference %q, refusing %q", id, storedRef.String, uploadRef)
	}

	if _, err := tx.Exec(`UPDATE posts SET uploaded = 1, upload_ref = ? WHERE id = ?`, uploadRef, id); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to mark post uploaded", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to commit upload state", err)
	}
	return nil
}

// queryPosts runs a query returning full post rows. Callers hold the lock.
func (s *Store) queryPosts(query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to query posts", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "failed to scan post", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to iterate posts", err)
	}
	return posts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var imageURI, uploadRef sql.NullString
	err := row.Scan(
		&post.ID, &post.Title, &post.Body, &imageURI,
		&post.CreatedAt, &post.UpdatedAt, &post.Uploaded, &uploadRef,
	)
	if err != nil {
		return nil, err
	}
	if imageURI.Valid {
		post.ImageURI = imageURI.String
	}
	if uploadRef.Valid {
		post.UploadRef = uploadRef.String
	}
	return &post, nil
}

// nullable maps the empty string to NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// escapeLike escapes %, _ and \ in a LIKE pattern fragment.
func escapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
