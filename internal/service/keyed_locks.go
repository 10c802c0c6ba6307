package service

import (
	"fmt"
	"sync"
)

// SubmissionLocks serializes submission creation per participation and commit.
// Entries are dropped once no caller holds or waits for them.
type SubmissionLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// NewSubmissionLocks constructs an empty lock set.
func NewSubmissionLocks() *SubmissionLocks {
	return &SubmissionLocks{locks: make(map[string]*refLock)}
}

// Lock blocks until the key is free and returns the matching unlock function.
func (l *SubmissionLocks) Lock(participationID uint, commitHash string) func() {
	key := fmt.Sprintf("%d:%s", participationID, commitHash)

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &refLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *SubmissionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// inFlightSet marks keys with running background work.
type inFlightSet struct {
	mu      sync.Mutex
	running map[uint]struct{}
}

func newInFlightSet() *inFlightSet {
	return &inFlightSet{running: make(map[uint]struct{})}
}

// tryStart reports false when id is already running.
func (s *inFlightSet) tryStart(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[id]; ok {
		return false
	}
	s.running[id] = struct{}{}
	return true
}

func (s *inFlightSet) finish(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}
