package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSession is returned by SessionStore.Load when no auth file exists.
var ErrNoSession = errors.New("no saved session found, log in first")

// SessionCookie is a browser-independent cookie representation so the auth
// bundle can be serialized to disk and re-injected on a later run.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // seconds since epoch, 0 = session cookie
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionSettings are the account flags echoed by the login endpoint. They
// are hydrated back into the portal's client-side storage on every run.
type SessionSettings struct {
	IsLogin          bool   `json:"isLogin"`
	MerchantType     string `json:"merchantType"`
	IsDefaultPin     bool   `json:"isDefaultPin"`
	IsNewUser        bool   `json:"isNewUser"`
	IsSubsidyProduct bool   `json:"isSubsidyProduct"`
}

// Session is the authentication bundle persisted between runs. It is owned
// by exactly one process at a time. Validity is only ever verified
// empirically against the portal; there is no local expiry timestamp.
type Session struct {
	ID          string          `json:"id"`
	SavedAt     time.Time       `json:"savedAt"`
	Cookies     []SessionCookie `json:"cookies"`
	AccessToken string          `json:"accessToken"`
	Settings    SessionSettings `json:"settings"`
}

// SessionStore persists the auth bundle as a JSON file. Created on login,
// deleted on logout; the file is the sole cross-invocation state.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

func (s *SessionStore) Path() string {
	return s.path
}

// Load reads the saved session. Returns ErrNoSession when absent.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &session, nil
}

// Save writes the session, creating the data dir on first use.
func (s *SessionStore) Save(session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Delete removes the session file. Deleting an absent file is not an error.
func (s *SessionStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}
