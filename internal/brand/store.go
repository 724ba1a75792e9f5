package brand

import (
	"sync"
	"time"
)

// Session is the interactive state around one user's kit.
type Session struct {
	Config Configuration

	AwaitingField      Field          // "" when no text input is pending
	AwaitingAttachment AttachmentKind // "" when no photo is pending
	Menu               string         // "main" | lowercase platform category | "fields" | "assets"
	MessageID          int

	UpdatedAt time.Time
}

func (s Session) snapshot() Session {
	out := s
	out.Config = s.Config.Snapshot()
	return out
}

type Store struct {
	mu sync.Mutex
	m  map[string]*Session
}

func NewStore() *Store {
	return &Store{m: make(map[string]*Session)}
}

func (s *Store) Get(key string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(key).snapshot()
}

// Update runs fn under the store lock and returns a snapshot of the result.
// A non-nil error from fn is returned after the mutation; fn is responsible
// for leaving the session consistent.
func (s *Store) Update(key string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(key)
	var err error
	if fn != nil {
		err = fn(st)
	}
	st.UpdatedAt = time.Now()
	return st.snapshot(), err
}

func (s *Store) Reset(key string) Session {
	st, _ := s.Update(key, func(st *Session) error {
		msgID := st.MessageID
		*st = defaultSession()
		st.MessageID = msgID
		return nil
	})
	return st
}

func (s *Store) getOrCreateLocked(key string) *Session {
	if st, ok := s.m[key]; ok {
		return st
	}
	st := defaultSession()
	s.m[key] = &st
	return s.m[key]
}

func defaultSession() Session {
	return Session{
		Config:    DefaultConfiguration(),
		Menu:      "main",
		UpdatedAt: time.Now(),
	}
}
