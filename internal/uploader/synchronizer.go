// Package uploader orchestrates the at-most-once local-to-remote publish
// protocol for Post records.
package uploader

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kimhsiao/postnexus/internal/errors"
	"github.com/kimhsiao/postnexus/internal/logging"
	"github.com/kimhsiao/postnexus/internal/models"
	"github.com/kimhsiao/postnexus/internal/remote"
	"github.com/kimhsiao/postnexus/internal/repo"
)

const defaultPublishTimeout = 30 * time.Second

// Synchronizer publishes a Post to the remote store and records the outcome
// in the local store, remote first. The local uploaded flag is only ever set
// after the remote store has accepted the snapshot, so uploaded=true always
// means a remote copy exists. The inverse does not hold: if the local commit
// fails after remote acceptance, the remote copy is orphaned and the record
// stays not-uploaded. A later retry then creates a second remote copy; the
// orphaned reference is logged so the window stays observable.
type Synchronizer struct {
	repo    *repo.Repository
	remote  remote.Store
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[int64]bool
}

// New creates a Synchronizer. A non-positive timeout falls back to the
// default publish timeout.
func New(r *repo.Repository, store remote.Store, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Synchronizer{
		repo:     r,
		remote:   store,
		timeout:  timeout,
		inFlight: make(map[int64]bool),
	}
}

// Publish runs the two-phase publish protocol for the post with the given id
// and returns the remote reference on success.
//
// Failure surface:
//   - ALREADY_UPLOADED: the record is already uploaded; no remote call made.
//   - CONFLICT: a publish for the same post is still in flight.
//   - REMOTE_REJECTED: the remote store refused; no local or remote state
//     changed, the caller may retry.
//   - UPLOAD_OUTCOME_UNKNOWN: the snapshot send timed out; the remote side
//     may or may not hold the data. The local record is untouched and the
//     caller must check the remote store before re-publishing.
//   - anything else: remote accepted but the local commit failed; the record
//     stays not-uploaded.
func (s *Synchronizer) Publish(ctx context.Context, id int64) (string, error) {
	if !s.begin(id) {
		return "", errors.Newf(errors.ErrConflict, "publish already in progress for post %d", id)
	}
	defer s.end(id)

	post, err := s.repo.GetByID(id).Await(ctx)
	if err != nil {
		return "", err
	}
	if post.Uploaded {
		return "", errors.Newf(errors.ErrAlreadyUploaded,
			"post %d already uploaded with reference %q", id, post.UploadRef)
	}

	// The remote round trip happens outside any store lock; only the final
	// MarkUploaded is a serialized local write.
	ref, err := s.allocate(ctx)
	if err != nil {
		return "", err
	}

	if err := s.send(ctx, ref, post); err != nil {
		return "", err
	}

	if _, err := s.repo.MarkUploaded(id, ref).Await(context.Background()); err != nil {
		// Remote copy exists but the local flag was not set. Accepting a
		// duplicate remote copy on retry costs less than losing the commit.
		logging.Error("local commit failed after remote accept", err, logging.Fields{
			"post_id": id, "orphaned_ref": ref,
		})
		return "", errors.Wrap(errors.CodeOf(err),
			"remote publish succeeded but recording it locally failed", err)
	}

	logging.Info("post published", logging.Fields{"post_id": id, "upload_ref": ref})
	return ref, nil
}

// allocate requests a fresh reference. A timeout here is a clean rejection:
// no snapshot data has been sent yet.
func (s *Synchronizer) allocate(ctx context.Context) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ref, err := s.remote.AllocateReference(callCtx)
	if err != nil {
		return "", errors.Wrap(errors.ErrRemoteRejected, "remote store did not allocate a reference", err)
	}
	return ref, nil
}

// send publishes the snapshot. A timeout is ambiguous, the data may have
// reached the remote store, and is surfaced as UPLOAD_OUTCOME_UNKNOWN.
func (s *Synchronizer) send(ctx context.Context, ref string, post *models.Post) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap := remote.Snapshot{
		LocalID:     post.ID,
		Title:       post.Title,
		Body:        post.Body,
		ImageURI:    post.ImageURI,
		PublishedAt: time.Now().UnixMilli(),
	}

	if err := s.remote.Publish(callCtx, ref, snap); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrUploadOutcomeUnknown,
				"publish timed out, check the remote store before re-publishing", err)
		}
		return errors.Wrap(errors.ErrRemoteRejected, "remote store rejected the snapshot", err)
	}
	return nil
}

// begin marks a post as publishing; reports false if one is already running.
func (s *Synchronizer) begin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Synchronizer) end(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
