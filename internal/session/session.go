package session

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Session is the per-request view of a session record. It is not safe for
// concurrent use and must not outlive the request.
type Session struct {
	id       string
	data     Data
	original string

	// cookieID is the verified id the client sent, empty when none.
	cookieID string
	// staleIDs are destroyed in the store when the response is committed.
	staleIDs  []string
	destroyed bool
}

func newSession(cookieID string) *Session {
	return &Session{id: uuid.NewString(), data: Data{}, original: fingerprint(Data{}), cookieID: cookieID}
}

func loadedSession(id string, data Data) *Session {
	return &Session{id: id, data: data, original: fingerprint(data), cookieID: id}
}

func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the client does not hold a cookie for this session.
func (s *Session) IsNew() bool {
	return s.cookieID != s.id
}

func (s *Session) Get(key string) (interface{}, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) GetString(key string) string {
	v, _ := s.data[key].(string)
	return v
}

func (s *Session) Set(key string, value interface{}) {
	s.data[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.data, key)
}

// Regenerate replaces the session with an empty one under a fresh id. The
// old record is removed when the response is committed.
func (s *Session) Regenerate() {
	if !s.IsNew() {
		s.staleIDs = append(s.staleIDs, s.id)
	}
	s.id = uuid.NewString()
	s.data = Data{}
	s.original = fingerprint(s.data)
	s.destroyed = false
}

// Destroy removes the session record and clears the client cookie.
func (s *Session) Destroy() {
	s.destroyed = true
	s.data = Data{}
}

// Modified reports whether the payload differs from what was loaded.
func (s *Session) Modified() bool {
	return fingerprint(s.data) != s.original
}

// encoding/json sorts map keys, so equal payloads give equal fingerprints.
func fingerprint(data Data) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}
