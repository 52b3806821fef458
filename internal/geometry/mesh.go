package geometry

// Vertex is a 3D point in meters.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Triangle indexes three vertices of a mesh, counter-clockwise when viewed
// from outside.
type Triangle struct {
	A int `json:"a"`
	B int `json:"b"`
	C int `json:"c"`
}

// Mesh is one named object of a model: a shared vertex buffer plus triangles.
type Mesh struct {
	Name      string     `json:"name"`
	Vertices  []Vertex   `json:"vertices"`
	Triangles []Triangle `json:"triangles"`
}

// Model3D is the assembled scene: one mesh per room and per wall segment.
type Model3D struct {
	Meshes []Mesh `json:"meshes"`
}

// VertexCount returns the total number of vertices across all meshes.
func (m *Model3D) VertexCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += len(mesh.Vertices)
	}
	return n
}

// TriangleCount returns the total number of triangles across all meshes.
func (m *Model3D) TriangleCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += len(mesh.Triangles)
	}
	return n
}
