package ports

import "go.trai.ch/fab/internal/core/domain"

// FingerprintStore persists per-target command fingerprints across runs.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type FingerprintStore interface {
	// Get retrieves the fingerprint recorded for a target.
	// Returns nil, nil if not found.
	Get(target string) (*domain.Fingerprint, error)

	// Put stores the fingerprint.
	Put(fp domain.Fingerprint) error
}
