// Package repo provides the asynchronous Post repository: the only entry
// point callers use for persistence operations.
package repo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kimhsiao/postnexus/internal/db"
	"github.com/kimhsiao/postnexus/internal/errors"
	"github.com/kimhsiao/postnexus/internal/logging"
	"github.com/kimhsiao/postnexus/internal/models"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Options configures the Repository's worker pool.
type Options struct {
	// Workers is the number of concurrent worker goroutines.
	Workers int
	// QueueSize bounds the pending task queue; Submitting to a full queue
	// blocks the caller, which is the back-pressure mechanism.
	QueueSize int
}

// Repository wraps every Store operation in an asynchronous unit of work and
// delivers the result through a single-fire Future. Callers are never blocked
// on storage I/O. Once dispatched, an operation runs to completion; there is
// no mid-flight cancellation.
type Repository struct {
	store *db.Store

	tasks chan task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type task struct {
	opID string
	name string
	run  func()
}

// New creates a Repository over the given store and starts its workers.
func New(store *db.Store, opts Options) *Repository {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	r := &Repository{
		store: store,
		tasks: make(chan task, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Repository) worker() {
	defer r.wg.Done()
	for t := range r.tasks {
		t.run()
	}
}

// Close stops accepting new operations and waits for in-flight work to land.
func (r *Repository) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
}

// submit dispatches fn onto the worker pool and returns its future. Failures
// are delivered through the future, never thrown across the async boundary:
// a panic inside fn is captured and surfaced as a storage failure.
func submit[T any](r *Repository, name string, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	t := task{
		opID: uuid.New().String(),
		name: name,
	}
	t.run = func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("repository operation panicked", nil, logging.Fields{
					"op": t.name, "op_id": t.opID, "panic": fmt.Sprint(rec),
				})
				var zero T
				f.complete(zero, errors.Newf(errors.ErrStorage, "%s failed: %v", t.name, rec))
			}
		}()

		val, err := fn()
		if err != nil {
			logging.Debug("repository operation failed", logging.Fields{
				"op": t.name, "op_id": t.opID, "code": errors.CodeOf(err),
			})
		}
		f.complete(val, err)
	}

	// The read lock covers the send so Close cannot close the channel while
	// a submit is in flight.
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		var zero T
		f.complete(zero, errors.Newf(errors.ErrStorage, "repository is closed, rejecting %s", name))
		return f
	}
	r.tasks <- t
	r.mu.RUnlock()
	return f
}

// Insert persists a new post from the draft and resolves to its assigned id.
func (r *Repository) Insert(draft *models.Draft) *Future[int64] {
	return submit(r, "insert", func() (int64, error) {
		return r.store.Insert(draft)
	})
}

// GetByID resolves to the post with the given id.
func (r *Repository) GetByID(id int64) *Future[*models.Post] {
	return submit(r, "get_by_id", func() (*models.Post, error) {
		return r.store.GetByID(id)
	})
}

// GetAll resolves to every post, newest first.
func (r *Repository) GetAll() *Future[[]*models.Post] {
	return submit(r, "get_all", func() ([]*models.Post, error) {
		return r.store.GetAll()
	})
}

// Search resolves to the posts matching query; an empty query behaves as
// GetAll.
func (r *Repository) Search(query string) *Future[[]*models.Post] {
	return submit(r, "search", func() ([]*models.Post, error) {
		return r.store.Search(query)
	})
}

// Update overwrites the stored record by id.
func (r *Repository) Update(post *models.Post) *Future[struct{}] {
	return submit(r, "update", func() (struct{}, error) {
		return struct{}{}, r.store.Update(post)
	})
}

// DeleteByID removes a post and resolves to the removed row count (0 or 1).
func (r *Repository) DeleteByID(id int64) *Future[int64] {
	return submit(r, "delete_by_id", func() (int64, error) {
		return r.store.DeleteByID(id)
	})
}

// DeleteByIDs removes a batch of posts transactionally and resolves to the
// matched row count.
func (r *Repository) DeleteByIDs(ids []int64) *Future[int64] {
	return submit(r, "delete_by_ids", func() (int64, error) {
		return r.store.DeleteByIDs(ids)
	})
}

// MarkUploaded records a successful remote publish for the post. A Conflict
// here means two publishes raced with different references; it is logged
// distinctly because it indicates a caller bug.
func (r *Repository) MarkUploaded(id int64, uploadRef string) *Future[struct{}] {
	return submit(r, "mark_uploaded", func() (struct{}, error) {
		err := r.store.MarkUploaded(id, uploadRef)
		if errors.Is(err, errors.ErrConflict) {
			logging.Error("upload reference conflict", err, logging.Fields{
				"post_id": id, "upload_ref": uploadRef,
			})
		}
		return struct{}{}, err
	})
}
