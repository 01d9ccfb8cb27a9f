package store

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process fallback store.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
	calls map[string]CallLog
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]User),
		calls: make(map[string]CallLog),
	}
}

// PutUser seeds or replaces a user record.
func (m *Memory) PutUser(user User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *Memory) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) DueUsers(ctx context.Context, now time.Time) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []User
	for _, user := range m.users {
		if user.Active && !user.NextCallAt.IsZero() && !user.NextCallAt.After(now) {
			due = append(due, user)
		}
	}
	return due, nil
}

func (m *Memory) SetUserActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Active = active
	m.users[id] = user
	return nil
}

func (m *Memory) SetUserNextCall(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.NextCallAt = at
	m.users[id] = user
	return nil
}

func (m *Memory) UpsertCallLog(ctx context.Context, log CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[log.CallSID] = log
	return nil
}

func (m *Memory) UpdateCallOutcome(ctx context.Context, callSID, outcome string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.calls[callSID]
	if !ok {
		log = CallLog{CallSID: callSID}
	}
	log.Outcome = outcome
	log.EndedAt = at
	m.calls[callSID] = log
	return nil
}

func (m *Memory) GetCallLog(ctx context.Context, callSID string) (CallLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log, ok := m.calls[callSID]
	if !ok {
		return CallLog{}, ErrNotFound
	}
	return log, nil
}

func (m *Memory) Close() {}
