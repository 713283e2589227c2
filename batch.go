package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// OrderRequest is one element of a create-orders input file.
type OrderRequest struct {
	NationalityID string `json:"nationalityId" validate:"required,len=16,numeric"`
	Quantity      int    `json:"quantity" validate:"required,min=1,max=20"`
	CustomerType  string `json:"customerType,omitempty" validate:"omitempty,oneof='Rumah Tangga' 'Usaha Mikro'"`
}

// loadNationalityIDs reads a verify-customers input file: a JSON array of
// 16-digit national ID strings. Rejected before any browser activity.
func loadNationalityIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, validationErr("Cannot read customers file %s: %v.", path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, validationErr("Customers file %s must be a JSON array of national ID strings.", path)
	}

	for i, id := range ids {
		if err := validate.Var(id, "required,len=16,numeric"); err != nil {
			return nil, validationErr("Customers file entry %d: national ID must be exactly 16 digits, got %q.", i+1, id)
		}
	}
	return ids, nil
}

// loadOrderRequests reads a create-orders input file: a JSON array of
// order specifications validated against the OrderRequest shape.
func loadOrderRequests(path string) ([]OrderRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, validationErr("Cannot read orders file %s: %v.", path, err)
	}

	var requests []OrderRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, validationErr("Orders file %s must be a JSON array of order objects.", path)
	}

	for i, req := range requests {
		if err := validate.Struct(req); err != nil {
			return nil, validationErr("Orders file entry %d is invalid: %v.", i+1, err)
		}
	}
	return requests, nil
}

// BatchRunner drives a single-item workflow over an ordered input list,
// strictly sequentially: the shared browser page cannot be used
// concurrently, and item N+1 never starts before item N fully resolves.
type BatchRunner struct {
	store    *SessionStore
	cooldown time.Duration
	logger   *zap.Logger
}

func NewBatchRunner(store *SessionStore, cooldown time.Duration, logger *zap.Logger) *BatchRunner {
	return &BatchRunner{store: store, cooldown: cooldown, logger: logger}
}

// runBatch processes items in order. Rate-limited items are retried in
// place after the cooldown, so delivery is at-least-once. The session is
// re-loaded from the store for every attempt, which lets a session
// refreshed between retries take effect. Other failures are logged and
// the item is dropped; only successes reach the accumulator.
func runBatch[I, R any](
	ctx context.Context,
	b *BatchRunner,
	drv Driver,
	items []I,
	describe func(I) string,
	op func(Driver, *Session, I) (R, error),
) ([]R, error) {
	results := make([]R, 0, len(items))

	for i, item := range items {
		var result R
		err := retry.Do(ctx, retry.NewConstant(b.cooldown), func(ctx context.Context) error {
			session, err := b.store.Load()
			if err != nil {
				return err
			}

			r, err := op(drv, session, item)
			if err != nil {
				if isRateLimited(err) {
					b.logger.Warn("rate limited, cooling down before retrying",
						zap.String("item", describe(item)),
						zap.Duration("cooldown", b.cooldown))
					return retry.RetryableError(err)
				}
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			// No stored session means every remaining item would fail the
			// same way; abort instead of burning through the list.
			if errors.Is(err, ErrNoSession) {
				return nil, err
			}
			b.logger.Warn("item failed, continuing with the next one",
				zap.Int("index", i+1),
				zap.String("item", describe(item)),
				zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// writeResults serializes a batch accumulator to its durable result file.
// An empty batch still produces a file holding an empty array.
func writeResults[T any](path string, results []T) error {
	if results == nil {
		results = make([]T, 0)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
