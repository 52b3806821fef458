package extractor

import (
	"context"
	"fmt"
	"sync/atomic"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/geometry"
)

// Stub is a deterministic Extractor for tests and local development. It
// returns a fixed geometry or a configured error without touching the image.
type Stub struct {
	Geometry *geometry.RawGeometry
	Err      error
	Calls    atomic.Int64
}

func (s *Stub) Extract(ctx context.Context, imagePath string) (*geometry.RawGeometry, error) {
	s.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGeometryExtraction, err)
	}
	if s.Err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGeometryExtraction, s.Err)
	}
	if s.Geometry == nil {
		return nil, fmt.Errorf("%w: stub has no geometry", apperrors.ErrGeometryExtraction)
	}
	return s.Geometry, nil
}
