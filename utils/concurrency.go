package utils

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines. When a limiter is
// set every job waits for a token before it starts.
type WorkerPool struct {
	semaphore chan struct{}
	limiter   *rate.Limiter
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency. limiter may be nil.
func NewWorkerPool(maxWorkers int, limiter *rate.Limiter) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		limiter:   limiter,
	}
}

// IntervalLimiter builds a limiter allowing one event every intervalMs
// milliseconds. A non-positive interval means no limit.
func IntervalLimiter(intervalMs int) *rate.Limiter {
	if intervalMs <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(1000.0/float64(intervalMs)), 1)
}

// Submit enqueues a job. Jobs whose context is cancelled before they obtain a
// slot or a rate token are skipped.
func (wp *WorkerPool) Submit(ctx context.Context, job func(ctx context.Context)) {
	wp.wg.Add(1)

	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		wp.wg.Done()
		return
	}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if wp.limiter != nil {
			if err := wp.limiter.Wait(ctx); err != nil {
				return
			}
		}
		job(ctx)
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// LinkSet is a thread-safe set of listing links.
type LinkSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewLinkSet creates a set pre-filled with links.
func NewLinkSet(links ...string) *LinkSet {
	s := &LinkSet{seen: make(map[string]struct{}, len(links))}
	for _, l := range links {
		s.seen[l] = struct{}{}
	}
	return s
}

// Add returns true if the link was newly added, false if already present.
func (s *LinkSet) Add(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[link]; exists {
		return false
	}
	s.seen[link] = struct{}{}
	return true
}

// Contains returns true if the link is in the set.
func (s *LinkSet) Contains(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[link]
	return exists
}

// Size returns the number of unique links tracked.
func (s *LinkSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
