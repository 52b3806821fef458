package builder

import (
	"fmt"
	"math"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/geometry"
)

// Builder assembles scaled 2D geometry into a 3D model. Rooms become closed
// polygons extruded to the configured wall height; wall segments become thin
// rectangular solids. No boolean overlap resolution is attempted.
type Builder struct {
	wallHeight    float64
	wallThickness float64
}

func New(wallHeight, wallThickness float64) *Builder {
	return &Builder{
		wallHeight:    wallHeight,
		wallThickness: wallThickness,
	}
}

func (b *Builder) Build(sg *geometry.ScaledGeometry) (*geometry.Model3D, error) {
	if len(sg.Rooms) == 0 && len(sg.Walls) == 0 {
		return nil, fmt.Errorf("%w: no rooms or walls to build", apperrors.ErrInvalidInput)
	}

	model := &geometry.Model3D{}
	for i, room := range sg.Rooms {
		mesh, err := b.extrudeRoom(room, i)
		if err != nil {
			return nil, err
		}
		model.Meshes = append(model.Meshes, mesh)
	}
	for i, wall := range sg.Walls {
		mesh, err := b.extrudeWall(wall, i)
		if err != nil {
			return nil, err
		}
		model.Meshes = append(model.Meshes, mesh)
	}
	return model, nil
}

// extrudeRoom builds the floor of a room plus vertical quads along its
// outline. The floor is fan-triangulated from the first vertex.
func (b *Builder) extrudeRoom(room geometry.Room, index int) (geometry.Mesh, error) {
	n := len(room.Outline)
	if n < 3 {
		return geometry.Mesh{}, fmt.Errorf("%w: room %d outline has %d points, need at least 3", apperrors.ErrInvalidInput, index, n)
	}

	name := room.Label
	if name == "" {
		name = fmt.Sprintf("room_%d", index)
	}
	mesh := geometry.Mesh{Name: name}

	// Bottom ring then top ring: vertex i is ground level, i+n is at wall
	// height.
	for _, p := range room.Outline {
		mesh.Vertices = append(mesh.Vertices, geometry.Vertex{X: p.X, Y: 0, Z: p.Y})
	}
	for _, p := range room.Outline {
		mesh.Vertices = append(mesh.Vertices, geometry.Vertex{X: p.X, Y: b.wallHeight, Z: p.Y})
	}

	// Floor.
	for i := 1; i < n-1; i++ {
		mesh.Triangles = append(mesh.Triangles, geometry.Triangle{A: 0, B: i, C: i + 1})
	}

	// Perimeter quads.
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		mesh.Triangles = append(mesh.Triangles,
			geometry.Triangle{A: i, B: j, C: n + j},
			geometry.Triangle{A: i, B: n + j, C: n + i},
		)
	}
	return mesh, nil
}

// extrudeWall builds a thin rectangular solid centered on the segment.
func (b *Builder) extrudeWall(wall geometry.Wall, index int) (geometry.Mesh, error) {
	dx := wall.End.X - wall.Start.X
	dy := wall.End.Y - wall.Start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return geometry.Mesh{}, fmt.Errorf("%w: wall %d has zero length", apperrors.ErrInvalidInput, index)
	}

	// Unit perpendicular offset for half the thickness.
	ox := -dy / length * b.wallThickness / 2
	oy := dx / length * b.wallThickness / 2

	mesh := geometry.Mesh{Name: fmt.Sprintf("wall_%d", index)}
	corners := []geometry.Point{
		{X: wall.Start.X + ox, Y: wall.Start.Y + oy},
		{X: wall.End.X + ox, Y: wall.End.Y + oy},
		{X: wall.End.X - ox, Y: wall.End.Y - oy},
		{X: wall.Start.X - ox, Y: wall.Start.Y - oy},
	}
	for _, c := range corners {
		mesh.Vertices = append(mesh.Vertices, geometry.Vertex{X: c.X, Y: 0, Z: c.Y})
	}
	for _, c := range corners {
		mesh.Vertices = append(mesh.Vertices, geometry.Vertex{X: c.X, Y: b.wallHeight, Z: c.Y})
	}

	// Box faces: bottom, top, and four sides.
	mesh.Triangles = append(mesh.Triangles,
		geometry.Triangle{A: 0, B: 2, C: 1}, geometry.Triangle{A: 0, B: 3, C: 2},
		geometry.Triangle{A: 4, B: 5, C: 6}, geometry.Triangle{A: 4, B: 6, C: 7},
	)
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		mesh.Triangles = append(mesh.Triangles,
			geometry.Triangle{A: i, B: j, C: 4 + j},
			geometry.Triangle{A: i, B: 4 + j, C: 4 + i},
		)
	}
	return mesh, nil
}
