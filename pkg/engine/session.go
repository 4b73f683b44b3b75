package engine

import "sync"

// Session pairs a compiled unit with the runtime instance its last evaluation
// produced. A Session returned by EvaluateSession never changes after creation
// and can be used as an Invoke or GetInterface target.
type Session struct {
	unit     Unit
	instance Instance
}

func (s *Session) Unit() Unit {
	if s == nil {
		return nil
	}
	return s.unit
}

func (s *Session) Instance() Instance {
	if s == nil {
		return nil
	}
	return s.instance
}

// sessionSlot holds the engine's implicit "last evaluated" session.
// Concurrent evaluations on one engine overwrite each other; callers that
// need a stable target use EvaluateSession.
type sessionSlot struct {
	mu      sync.RWMutex
	current *Session
}

func (s *sessionSlot) load() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *sessionSlot) store(sess *Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}
