package job

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrDuplicateID = errors.New("job id already exists")
)

// Store holds all job records. Reads are concurrent; every mutation of a
// job goes through Mutate and runs under the write lock, so no two stage
// transitions for the same job can interleave.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create allocates a new pending job and returns a snapshot of it.
func (s *Store) Create(filename string, fileSize int64) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := shortuuid.New()
	if _, exists := s.jobs[id]; exists {
		return Job{}, ErrDuplicateID
	}

	now := time.Now()
	j := &Job{
		ID:        id,
		Status:    StatusPending,
		Progress:  ProgressPending,
		Message:   "Waiting for processing to start",
		Filename:  filename,
		FileSize:  fileSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[id] = j
	return j.clone(), nil
}

// Get returns a snapshot of the job, or ErrNotFound.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j.clone(), nil
}

// Mutate applies fn to the job under the write lock. All fields touched
// by fn become visible to readers atomically.
func (s *Store) Mutate(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	j.UpdatedAt = time.Now()
	return nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}
