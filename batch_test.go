package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store := NewSessionStore(filepath.Join(t.TempDir(), "auth.json"))
	require.NoError(t, store.Save(testSession()))
	return store
}

func describeID(id string) string { return id }

func TestRunBatchProcessesItemsInOrder(t *testing.T) {
	store := newTestStore(t)
	runner := NewBatchRunner(store, time.Millisecond, zap.NewNop())

	var calls []string
	op := func(_ Driver, session *Session, id string) (string, error) {
		require.NotNil(t, session)
		calls = append(calls, id)
		return "ok-" + id, nil
	}

	results, err := runBatch(context.Background(), runner, newFakeDriver(),
		[]string{"a", "b", "c"}, describeID, op)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, []string{"ok-a", "ok-b", "ok-c"}, results)
}

func TestRunBatchRetriesRateLimitedItemInPlace(t *testing.T) {
	store := newTestStore(t)
	runner := NewBatchRunner(store, time.Millisecond, zap.NewNop())

	var calls []string
	limited := true
	op := func(_ Driver, _ *Session, id string) (string, error) {
		calls = append(calls, id)
		if id == "b" && limited {
			limited = false
			return "", classifyStatus(429, nil)
		}
		return "ok-" + id, nil
	}

	results, err := runBatch(context.Background(), runner, newFakeDriver(),
		[]string{"a", "b", "c"}, describeID, op)
	require.NoError(t, err)

	// The limited item is retried before the list moves on.
	assert.Equal(t, []string{"a", "b", "b", "c"}, calls)
	assert.Equal(t, []string{"ok-a", "ok-b", "ok-c"}, results)
}

func TestRunBatchDropsFailedItemAndContinues(t *testing.T) {
	store := newTestStore(t)
	runner := NewBatchRunner(store, time.Millisecond, zap.NewNop())

	op := func(_ Driver, _ *Session, id string) (string, error) {
		if id == "b" {
			return "", classifyStatus(404, verifyMessages)
		}
		return "ok-" + id, nil
	}

	results, err := runBatch(context.Background(), runner, newFakeDriver(),
		[]string{"a", "b", "c"}, describeID, op)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok-a", "ok-c"}, results)
}

func TestRunBatchAbortsWithoutStoredSession(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "auth.json"))
	runner := NewBatchRunner(store, time.Millisecond, zap.NewNop())

	calls := 0
	op := func(_ Driver, _ *Session, id string) (string, error) {
		calls++
		return "ok-" + id, nil
	}

	results, err := runBatch(context.Background(), runner, newFakeDriver(),
		[]string{"a", "b"}, describeID, op)
	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, results)
	assert.Zero(t, calls)
}

func TestRunBatchReloadsSessionPerAttempt(t *testing.T) {
	store := newTestStore(t)
	runner := NewBatchRunner(store, time.Millisecond, zap.NewNop())

	var seen []string
	op := func(_ Driver, session *Session, id string) (string, error) {
		seen = append(seen, session.AccessToken)
		if id == "a" {
			refreshed := testSession()
			refreshed.AccessToken = "token-refreshed"
			require.NoError(t, store.Save(refreshed))
		}
		return "ok-" + id, nil
	}

	_, err := runBatch(context.Background(), runner, newFakeDriver(),
		[]string{"a", "b"}, describeID, op)
	require.NoError(t, err)

	// The second item picks up the session written during the first.
	assert.Equal(t, []string{"token-abc", "token-refreshed"}, seen)
}

func TestWriteResultsEmptyBatchWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "customers.json")

	require.NoError(t, writeResults[Customer](path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestWriteResultsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	orders := []Order{{
		TransactionID: "TRX-1",
		Customer:      OrderCustomer{NationalityID: "1234567890123456", Name: "Siti", Quota: 3},
		Product:       OrderProduct{ID: "LPG3KG", Name: "LPG 3 kg", Quantity: 2},
	}}

	require.NoError(t, writeResults(path, orders))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TRX-1")
	assert.Contains(t, string(data), "1234567890123456")
}

func TestLoadNationalityIDs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid file", func(t *testing.T) {
		path := write("ok.json", `["1234567890123456", "6543210987654321"]`)
		ids, err := loadNationalityIDs(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"1234567890123456", "6543210987654321"}, ids)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadNationalityIDs(filepath.Join(dir, "absent.json"))
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})

	t.Run("not a JSON array", func(t *testing.T) {
		path := write("object.json", `{"ids": []}`)
		_, err := loadNationalityIDs(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})

	t.Run("entry with wrong length", func(t *testing.T) {
		path := write("short.json", `["1234567890123456", "12345"]`)
		_, err := loadNationalityIDs(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
		assert.Contains(t, err.Error(), "entry 2")
	})

	t.Run("entry with letters", func(t *testing.T) {
		path := write("letters.json", `["123456789012345a"]`)
		_, err := loadNationalityIDs(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})
}

func TestLoadOrderRequests(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid file", func(t *testing.T) {
		path := write("ok.json", `[
			{"nationalityId": "1234567890123456", "quantity": 3},
			{"nationalityId": "6543210987654321", "quantity": 1, "customerType": "Usaha Mikro"}
		]`)
		requests, err := loadOrderRequests(path)
		require.NoError(t, err)
		require.Len(t, requests, 2)
		assert.Equal(t, 3, requests[0].Quantity)
		assert.Equal(t, "Usaha Mikro", requests[1].CustomerType)
	})

	t.Run("missing quantity", func(t *testing.T) {
		path := write("noqty.json", `[{"nationalityId": "1234567890123456"}]`)
		_, err := loadOrderRequests(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})

	t.Run("quantity beyond cap", func(t *testing.T) {
		path := write("over.json", `[{"nationalityId": "1234567890123456", "quantity": 21}]`)
		_, err := loadOrderRequests(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})

	t.Run("unknown customer type", func(t *testing.T) {
		path := write("type.json", `[{"nationalityId": "1234567890123456", "quantity": 1, "customerType": "Pengecer"}]`)
		_, err := loadOrderRequests(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})

	t.Run("not a JSON array", func(t *testing.T) {
		path := write("scalar.json", `42`)
		_, err := loadOrderRequests(path)
		kind, ok := errorKind(err)
		require.True(t, ok)
		assert.Equal(t, ErrKindValidation, kind)
	})
}
