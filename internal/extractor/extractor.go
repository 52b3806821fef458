package extractor

import (
	"context"

	"planscape-backend/internal/geometry"
)

// Extractor is the black-box segmentation capability: floor-plan image in,
// raw pixel-space geometry out. Every failure mode (timeout, malformed
// output, unsupported image) surfaces wrapped in
// apperrors.ErrGeometryExtraction so the pipeline sees a single error type.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (*geometry.RawGeometry, error)
}
