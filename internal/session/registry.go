package session

import "sync"

// Registry is the process-wide index of live sessions. It tracks how many
// sessions each room has so the caller can tear down room-scoped resources
// when the last one leaves.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[string]int
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]int),
	}
}

// Register adds a session under its id and reports whether the session's
// room had no sessions before the call. Registering an id twice replaces the
// previous entry without adjusting the room count for it.
func (r *Registry) Register(s *Session) (roomNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; !exists {
		r.rooms[s.RoomID]++
		roomNew = r.rooms[s.RoomID] == 1
	}
	r.sessions[s.ID] = s
	return roomNew
}

// Get returns the session registered under id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Unregister removes the session with the given id. It reports whether the
// session's room has no remaining sessions; callers use that to drop the
// room's caches. Unknown ids return false.
func (r *Registry) Unregister(id string) (roomEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	r.rooms[s.RoomID]--
	if r.rooms[s.RoomID] <= 0 {
		delete(r.rooms, s.RoomID)
		return true
	}
	return false
}

// UpdateParticipant applies a settings change to every session in the room
// whose roster contains the participant, recomputing each session's strategy.
// Returns the number of sessions updated. The operation is idempotent.
func (r *Registry) UpdateParticipant(roomID, participantID, targetLang string, enabled bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for _, s := range r.sessions {
		if s.RoomID != roomID {
			continue
		}
		if s.applySettings(participantID, targetLang, enabled) {
			updated++
		}
	}
	return updated
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
