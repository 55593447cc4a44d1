package breadcrumbsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/types"
)

// CreateIdempotent wraps Create with the Idempotency-Key dedupe rule
// from §4.1: a retried request with the same key and the same body
// within the TTL window returns the breadcrumb the first request
// created, re-read from the store at its current version; the same key
// with a different body fails with conflict.
func (s *Service) CreateIdempotent(ctx context.Context, ownerID uuid.UUID, in CreateInput, idemKey string) (*types.Breadcrumb, error) {
	if idemKey == "" {
		return s.Create(ctx, ownerID, in)
	}

	hash, err := hashCreateInput(in)
	if err != nil {
		return nil, types.NewKindError(types.KindValidation, "invalid create body", err)
	}

	existing, err := s.store.GetIdempotent(ctx, ownerID, idemKey)
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if existing != nil {
		if existing.ResponseHash != hash {
			return nil, types.ErrConflict
		}
		return s.store.GetBreadcrumb(ctx, ownerID, existing.BreadcrumbID)
	}

	b, err := s.Create(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutIdempotent(ctx, ownerID, idemKey, b.ID, hash); err != nil {
		return nil, fmt.Errorf("record idempotency key: %w", err)
	}
	return b, nil
}

func hashCreateInput(in CreateInput) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
