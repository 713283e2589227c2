package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEstablishSessionInjectsAuthState(t *testing.T) {
	cfg := testConfig()
	mgr := NewAuthManager(cfg, zap.NewNop())
	drv := newFakeDriver()
	session := testSession()

	require.NoError(t, mgr.EstablishSession(drv, session))

	// Cookies and storage only stick after the origin page is open.
	assert.Equal(t, []string{cfg.LoginURL}, drv.navigations)
	assert.Equal(t, session.Cookies, drv.setCookies)

	payload, err := hydrationPayload(session)
	require.NoError(t, err)
	assert.Equal(t, payload, drv.localStorage[cfg.UserDataKey])
}

func TestDetectExpiry(t *testing.T) {
	cfg := testConfig()
	mgr := NewAuthManager(cfg, zap.NewNop())

	t.Run("landed where expected", func(t *testing.T) {
		drv := newFakeDriver()
		drv.currentURL = cfg.VerificationURL
		assert.NoError(t, mgr.DetectExpiry(drv, cfg.VerificationURL))
	})

	t.Run("redirected to login", func(t *testing.T) {
		drv := newFakeDriver()
		drv.currentURL = cfg.LoginURL
		err := mgr.DetectExpiry(drv, cfg.VerificationURL)
		require.Error(t, err)
		assert.True(t, isSessionExpired(err))
		assert.Equal(t, sessionExpiredMessage, err.Error())
	})
}

func TestSameDestination(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"identical", "https://portal.test/app/verify", "https://portal.test/app/verify", true},
		{"trailing slash on actual", "https://portal.test/app/verify/", "https://portal.test/app/verify", true},
		{"trailing slash on expected", "https://portal.test/app/verify", "https://portal.test/app/verify/", true},
		{"query appended", "https://portal.test/app/verify?ref=nav", "https://portal.test/app/verify", true},
		{"fragment appended", "https://portal.test/app/verify#top", "https://portal.test/app/verify", true},
		{"different page", "https://portal.test/auth/login", "https://portal.test/app/verify", false},
		{"prefix is not a match", "https://portal.test/app/verify-nik", "https://portal.test/app/verify", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sameDestination(tt.actual, tt.expected))
		})
	}
}
