// Package schedule stores the per-user schedules produced by the goal
// pipeline and answers upcoming-event queries.
package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/kira-labs/orchestrator/agent"
)

// UpcomingWindow bounds the Upcoming query horizon.
const UpcomingWindow = 7 * 24 * time.Hour

// Store maps user identity to that user's current schedule. Writes replace
// the whole schedule, last writer wins; there is no merging with a prior
// schedule. Thread-safe for concurrent access.
type Store struct {
	mu     sync.RWMutex
	byUser map[string]agent.Schedule
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byUser: make(map[string]agent.Schedule)}
}

// Put replaces the user's schedule atomically.
func (s *Store) Put(userID string, sched agent.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = sched
}

// Get returns the user's current schedule and whether one exists.
func (s *Store) Get(userID string) (agent.Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.byUser[userID]
	return sched, ok
}

// Delete removes the user's schedule.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}

// Upcoming returns the user's events starting after now and within
// UpcomingWindow, in ascending start-time order. Users without a schedule
// get an empty slice.
func (s *Store) Upcoming(userID string, now time.Time) []agent.Event {
	s.mu.RLock()
	sched := s.byUser[userID]
	s.mu.RUnlock()

	horizon := now.Add(UpcomingWindow)
	upcoming := make([]agent.Event, 0, len(sched.Events))
	for _, ev := range sched.Events {
		if ev.StartTime.After(now) && ev.StartTime.Before(horizon) {
			upcoming = append(upcoming, ev)
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartTime.Before(upcoming[j].StartTime)
	})

	return upcoming
}
