package main

import (
	"strings"

	"go.uber.org/zap"
)

// AuthManager establishes page state from a stored session and detects
// expiry. The portal gives no explicit expiry signal; the only observable
// is a redirect away from the page a workflow expected to land on.
type AuthManager struct {
	config *Config
	logger *zap.Logger
}

func NewAuthManager(config *Config, logger *zap.Logger) *AuthManager {
	return &AuthManager{config: config, logger: logger}
}

// EstablishSession makes the browser present as an authenticated visitor:
// it navigates to the portal entry page, injects the stored cookies, and
// hydrates the portal's client-side storage key with the wire-format user
// payload. Failures here surface only through later navigation checks.
func (m *AuthManager) EstablishSession(drv Driver, session *Session) error {
	if err := drv.Navigate(m.config.LoginURL); err != nil {
		return err
	}
	if err := drv.SetCookies(session.Cookies); err != nil {
		return err
	}

	payload, err := hydrationPayload(session)
	if err != nil {
		return err
	}
	if err := drv.SetLocalStorage(m.config.UserDataKey, payload); err != nil {
		return err
	}

	m.logger.Debug("session established",
		zap.String("session", session.ID),
		zap.Int("cookies", len(session.Cookies)))
	return nil
}

// DetectExpiry compares the page's actual URL against the one a navigation
// was expected to land on. A mismatch means the portal redirected us to the
// login screen, which is the expiry heuristic this client relies on.
func (m *AuthManager) DetectExpiry(drv Driver, expectedURL string) error {
	current, err := drv.CurrentURL()
	if err != nil {
		return browserErr("read current url", err)
	}

	if !sameDestination(current, expectedURL) {
		m.logger.Debug("expiry redirect detected",
			zap.String("expected", expectedURL),
			zap.String("actual", current))
		return sessionExpiredErr()
	}
	return nil
}

// sameDestination ignores trailing slashes and any query/fragment the
// portal appends while landing on the expected page.
func sameDestination(actual, expected string) bool {
	actual = strings.TrimSuffix(strings.SplitN(strings.SplitN(actual, "#", 2)[0], "?", 2)[0], "/")
	expected = strings.TrimSuffix(expected, "/")
	return actual == expected
}
