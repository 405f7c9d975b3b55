package ports

import "go.trai.ch/fab/internal/core/domain"

// SpecFile is the parsed build specification: target declarations in file
// order plus global variable assignments.
type SpecFile struct {
	Declarations []domain.Declaration
	Globals      []domain.GlobalVar
	// Default is the first declared concrete target, built when the user
	// requests nothing explicitly.
	Default string
}

// SpecLoader turns a build-specification file into declarations. The
// engine never re-parses text; it consumes this already-validated shape.
//
//go:generate go run go.uber.org/mock/mockgen -source=spec_loader.go -destination=mocks/mock_spec_loader.go -package=mocks
type SpecLoader interface {
	Load(path string) (*SpecFile, error)
}
