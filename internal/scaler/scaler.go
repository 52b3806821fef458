package scaler

import (
	"fmt"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/geometry"
)

// Scale converts pixel-space geometry to meters using a uniform factor
// derived from a known reference measurement. An explicit ref overrides any
// reference embedded in raw. Missing or degenerate references fail rather
// than defaulting: a silently wrong scale corrupts everything downstream.
//
// Scale is deterministic and side-effect-free: identical inputs produce
// bit-identical output.
func Scale(raw *geometry.RawGeometry, ref *geometry.ScaleReference) (*geometry.ScaledGeometry, error) {
	if ref == nil {
		ref = raw.Reference
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: no scale reference supplied or embedded", apperrors.ErrScaling)
	}
	if ref.PixelLength <= 0 {
		return nil, fmt.Errorf("%w: reference pixel length %v is not positive", apperrors.ErrScaling, ref.PixelLength)
	}
	if ref.RealLength <= 0 {
		return nil, fmt.Errorf("%w: reference real length %v is not positive", apperrors.ErrScaling, ref.RealLength)
	}

	factor := ref.RealLength / ref.PixelLength

	out := &geometry.ScaledGeometry{
		Rooms:  make([]geometry.Room, len(raw.Rooms)),
		Walls:  make([]geometry.Wall, len(raw.Walls)),
		Factor: factor,
	}
	for i, room := range raw.Rooms {
		outline := make([]geometry.Point, len(room.Outline))
		for j, p := range room.Outline {
			outline[j] = scalePoint(p, factor)
		}
		out.Rooms[i] = geometry.Room{Label: room.Label, Outline: outline}
	}
	for i, wall := range raw.Walls {
		out.Walls[i] = geometry.Wall{
			Start: scalePoint(wall.Start, factor),
			End:   scalePoint(wall.End, factor),
		}
	}
	return out, nil
}

func scalePoint(p geometry.Point, factor float64) geometry.Point {
	return geometry.Point{X: p.X * factor, Y: p.Y * factor}
}
