package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"usaha/internal/core"
	"usaha/internal/log"
)

// writeTimeout bounds one background write against the remote backend.
const writeTimeout = 15 * time.Second

// revisions is shared by every store, so a store reopened for the same owner
// never repeats a revision an earlier one handed out.
var revisions atomic.Uint64

// ErrClosed is returned by mutations issued after Close.
var ErrClosed = errors.New("store closed")

type write struct {
	op  string
	run func(ctx context.Context) error
}

// Store is the authoritative in-memory copy of one owner's businesses.
//
// Mutations update memory first. Guest writes then go to the backend
// synchronously, still under the lock, and a failure rolls memory back.
// Authenticated writes join a queue in the same critical section as their
// memory change and a single background writer applies them in that order;
// their failures are only logged and the optimistic memory state stays (last
// writer wins).
//
// The backend's subscription feed replaces memory whenever no write is in
// flight, so the committed value always wins in the end.
type Store struct {
	owner    Owner
	backend  Backend
	calendar Calendar
	logger   *log.Logger

	mu         sync.RWMutex
	businesses []core.Business
	revision   uint64
	pending    int
	writes     []write
	closed     bool
	stashed    []core.Business
	hasStash   bool
	snapshots  <-chan []core.Business

	idle     *sync.Cond
	wake     *sync.Cond
	kick     chan struct{}
	feed     *Broadcaster
	cancel   func()
	wrote    chan struct{}
	followed chan struct{}
}

// Open loads the owner's data and starts following the backend feed.
// calendar may be nil.
func Open(ctx context.Context, owner Owner, backend Backend, calendar Calendar, logger *log.Logger) (*Store, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}
	businesses, err := backend.Load(ctx, owner.Key)
	if err != nil {
		return nil, fmt.Errorf("load businesses: %w", err)
	}

	s := &Store{
		owner:      owner,
		backend:    backend,
		calendar:   calendar,
		logger:     logger.WithComponent(log.ComponentStore).With(log.FieldOwner, owner.Key, log.FieldGuest, owner.Guest),
		businesses: businesses,
		revision:   revisions.Add(1),
		kick:       make(chan struct{}, 1),
		feed:       NewBroadcaster(),
		wrote:      make(chan struct{}),
		followed:   make(chan struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	s.wake = sync.NewCond(&s.mu)

	s.snapshots, s.cancel = backend.Subscribe(owner.Key)
	go s.follow()
	go s.writer()
	return s, nil
}

// Owner returns the owner this store serves.
func (s *Store) Owner() Owner { return s.owner }

// Businesses returns a deep copy of every business.
func (s *Store) Businesses() []core.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneAll(s.businesses)
}

// Business returns a deep copy of one business.
func (s *Store) Business(id string) (core.Business, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.businesses[i].Clone(), true
	}
	return core.Business{}, false
}

// Revision increases on every change of the in-memory collection. It is
// unique across the process.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe delivers the full collection after every change.
func (s *Store) Subscribe() (<-chan []core.Business, func()) {
	return s.feed.Subscribe(s.owner.Key)
}

// Closed reports whether Close has run.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Flush blocks until every queued write has been attempted.
func (s *Store) Flush() {
	s.mu.Lock()
	for s.pending > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Close drains pending writes and stops following the backend. Mutations
// after Close fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for s.pending > 0 {
		s.idle.Wait()
	}
	s.closed = true
	s.wake.Broadcast()
	s.mu.Unlock()

	s.cancel()
	<-s.wrote
	<-s.followed
}

func (s *Store) indexOf(businessID string) int {
	for i := range s.businesses {
		if s.businesses[i].ID == businessID {
			return i
		}
	}
	return -1
}

// mutate runs fn against a copy of the business and swaps it in under the
// write lock. fn returns the backend write to persist the change, or an error
// to abort.
func (s *Store) mutate(ctx context.Context, op, businessID string, fn func(b *core.Business) (func(context.Context) error, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(businessID)
	if i < 0 {
		s.logger.DebugContext(ctx, "Business not found", log.FieldOperation, op, log.FieldBusinessID, businessID)
		return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}
	prev := s.businesses[i]
	b := prev.Clone()
	persist, err := fn(&b)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.DebugContext(ctx, "Mutation target not found", log.FieldOperation, op, log.FieldBusinessID, businessID, log.FieldError, err.Error())
		}
		return err
	}
	s.businesses[i] = b
	return s.commitLocked(ctx, op, persist, func() { s.businesses[i] = prev })
}

// changedLocked bumps the revision and notifies subscribers. Caller holds mu.
func (s *Store) changedLocked() {
	s.revision = revisions.Add(1)
	s.feed.Publish(s.owner.Key, s.businesses)
}

// commitLocked persists the memory change the caller just made. Remote writes
// are queued in lock order, so the backend sees them in the order memory did.
// Guest writes run inline; when they fail undo restores memory. Caller holds
// mu.
func (s *Store) commitLocked(ctx context.Context, op string, run func(context.Context) error, undo func()) error {
	if run == nil {
		s.changedLocked()
		return nil
	}
	if s.closed {
		undo()
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if s.owner.Guest {
		if err := run(ctx); err != nil {
			undo()
			s.logger.ErrorContext(ctx, "Local write failed", log.FieldOperation, op, log.FieldError, err.Error())
			return fmt.Errorf("%s: %w", op, err)
		}
		s.changedLocked()
		return nil
	}
	s.pending++
	s.writes = append(s.writes, write{op: op, run: run})
	s.wake.Signal()
	s.changedLocked()
	return nil
}

func (s *Store) writer() {
	defer close(s.wrote)
	for {
		s.mu.Lock()
		for len(s.writes) == 0 && !s.closed {
			s.wake.Wait()
		}
		if len(s.writes) == 0 {
			s.mu.Unlock()
			return
		}
		w := s.writes[0]
		s.writes[0] = write{}
		s.writes = s.writes[1:]
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.run(ctx); err != nil {
			s.logger.Error("Remote write failed", log.NewFields().
				WithOperation(w.op).WithErrorType(log.ErrorTypeDatabase).WithError(err).ToSlice()...)
		}
		cancel()

		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			select {
			case s.kick <- struct{}{}:
			default:
			}
			s.idle.Broadcast()
		}
		s.mu.Unlock()
	}
}

// follow is the only reader of the backend feed, so snapshots are seen in
// the order the backend published them. A kick from the writer applies a
// snapshot that was stashed while writes were in flight.
func (s *Store) follow() {
	defer close(s.followed)
	for {
		select {
		case snap, ok := <-s.snapshots:
			if !ok {
				return
			}
			s.reconcile(snap, true)
		case <-s.kick:
			s.reconcile(nil, false)
		}
	}
}

func (s *Store) reconcile(snap []core.Business, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fresh {
		s.stashed, s.hasStash = snap, true
	}
	s.takeNewestLocked()
	if s.pending == 0 && s.hasStash {
		s.applyLocked(s.stashed)
	}
}

// takeNewestLocked stashes a snapshot still waiting in the feed, which is
// newer than any stashed one. Caller holds mu.
func (s *Store) takeNewestLocked() {
	select {
	case snap, ok := <-s.snapshots:
		if ok {
			s.stashed, s.hasStash = snap, true
		}
	default:
	}
}

func (s *Store) applyLocked(snap []core.Business) {
	s.businesses = snap
	s.stashed, s.hasStash = nil, false
	s.changedLocked()
}
