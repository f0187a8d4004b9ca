// Package cache is an in-memory hawk.CacheStorage. Users, groups, contact
// lists and member lists are kept in separately locked categories and
// evicted by a background sweeper once they have not been touched for the
// configured lifetime. Leased records are never evicted.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"hawk-go/internal/hawk"
)

const (
	DefaultLifetime      = 15 * time.Minute
	DefaultSweepInterval = 50 * time.Millisecond
)

// Store implements hawk.CacheStorage.
type Store struct {
	lifetime time.Duration
	interval time.Duration
	logger   hawk.Logger
	clock    hawk.Clock

	users        category[*hawk.User]
	groups       category[*hawk.Group]
	userContacts category[idSet]
	groupUsers   category[idSet]

	lifecycle sync.Mutex
	open      atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

var _ hawk.CacheStorage = (*Store)(nil)

// Stats is the number of entries per category.
type Stats struct {
	Users        int
	Groups       int
	UserContacts int
	GroupUsers   int
}

// New creates a closed cache. Non-positive durations select the defaults.
func New(lifetime, interval time.Duration, logger hawk.Logger, clock hawk.Clock) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clock == nil {
		clock = hawk.RealClock{}
	}
	s := &Store{
		lifetime: lifetime,
		interval: interval,
		logger:   hawk.LoggerOrNop(logger),
		clock:    clock,
	}
	s.users.init()
	s.groups.init()
	s.userContacts.init()
	s.groupUsers.init()
	return s
}

// Open starts the sweeper, restarting it if the cache is already open.
func (s *Store) Open() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLocked()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	s.open.Store(true)
	s.logger.Debug("cache opened", "lifetime", s.lifetime, "interval", s.interval)
	return nil
}

// IsOpen reports whether the sweeper is running.
func (s *Store) IsOpen() bool {
	return s.open.Load()
}

// Close stops the sweeper, waits for it to exit and drops every entry.
func (s *Store) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLocked()
	s.users.reset()
	s.groups.reset()
	s.userContacts.reset()
	s.groupUsers.reset()
}

func (s *Store) stopLocked() {
	if s.stop == nil {
		return
	}
	s.open.Store(false)
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

func (s *Store) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts every unleased entry whose last access is at least the
// lifetime ago. It returns the number of evicted entries.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	n := s.users.sweep(now, s.lifetime)
	n += s.groups.sweep(now, s.lifetime)
	n += s.userContacts.sweep(now, s.lifetime)
	n += s.groupUsers.sweep(now, s.lifetime)
	if n > 0 {
		s.logger.Debug("cache swept", "evicted", n)
	}
	return n
}

// Stats returns the current number of entries per category.
func (s *Store) Stats() Stats {
	return Stats{
		Users:        s.users.size(),
		Groups:       s.groups.size(),
		UserContacts: s.userContacts.size(),
		GroupUsers:   s.groupUsers.size(),
	}
}

func (s *Store) now() time.Time { return s.clock.Now() }

func (s *Store) requireOpen() error {
	if !s.open.Load() {
		return hawk.ErrNotOpen
	}
	return nil
}

// AcquireUser returns the cached user and pins it until release is called.
func (s *Store) AcquireUser(id string) (*hawk.User, hawk.Release, error) {
	if err := s.requireOpen(); err != nil {
		return nil, nil, err
	}
	u, release, ok := s.users.acquire(id, s.now)
	if !ok {
		return nil, nil, hawk.ErrUserNotExists
	}
	return u, release, nil
}

// AcquireGroup returns the cached group and pins it until release is called.
func (s *Store) AcquireGroup(id string) (*hawk.Group, hawk.Release, error) {
	if err := s.requireOpen(); err != nil {
		return nil, nil, err
	}
	g, release, ok := s.groups.acquire(id, s.now)
	if !ok {
		return nil, nil, hawk.ErrGroupNotExists
	}
	return g, release, nil
}
