package builder

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"planscape-backend/internal/apperrors"
	"planscape-backend/internal/geometry"
)

// ExportResult is the outcome for one requested format.
type ExportResult struct {
	Format string
	Path   string
	Err    error
}

// PathFunc reserves the output path for one artifact kind.
type PathFunc func(kind string) (string, error)

// Export writes the model in every requested format. Formats are isolated:
// one writer failing never prevents the others from being attempted. The
// caller inspects the per-format results to decide between full success,
// partial success, and failure.
func (b *Builder) Export(model *geometry.Model3D, formats []string, reserve PathFunc) []ExportResult {
	results := make([]ExportResult, 0, len(formats))
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		results = append(results, b.exportOne(model, format, reserve))
	}
	return results
}

func (b *Builder) exportOne(model *geometry.Model3D, format string, reserve PathFunc) ExportResult {
	result := ExportResult{Format: format}

	var encode func(*geometry.Model3D) ([]byte, error)
	switch format {
	case "obj":
		encode = encodeOBJ
	case "stl":
		encode = encodeSTL
	case "gltf":
		encode = encodeGLTF
	default:
		result.Err = fmt.Errorf("%w: unsupported format %q", apperrors.ErrExport, format)
		return result
	}

	data, err := encode(model)
	if err != nil {
		result.Err = fmt.Errorf("%w: encode %s: %v", apperrors.ErrExport, format, err)
		return result
	}

	path, err := reserve("model." + format)
	if err != nil {
		result.Err = fmt.Errorf("%w: reserve path for %s: %v", apperrors.ErrExport, format, err)
		return result
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		result.Err = fmt.Errorf("%w: write %s: %v", apperrors.ErrExport, format, err)
		return result
	}

	result.Path = path
	return result
}

func encodeOBJ(model *geometry.Model3D) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# planscape model\n")
	offset := 1 // OBJ indices are 1-based and global across objects.
	for _, mesh := range model.Meshes {
		fmt.Fprintf(&buf, "o %s\n", mesh.Name)
		for _, v := range mesh.Vertices {
			fmt.Fprintf(&buf, "v %g %g %g\n", v.X, v.Y, v.Z)
		}
		for _, t := range mesh.Triangles {
			fmt.Fprintf(&buf, "f %d %d %d\n", offset+t.A, offset+t.B, offset+t.C)
		}
		offset += len(mesh.Vertices)
	}
	return buf.Bytes(), nil
}

func encodeSTL(model *geometry.Model3D) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("solid planscape\n")
	for _, mesh := range model.Meshes {
		for _, t := range mesh.Triangles {
			a := mesh.Vertices[t.A]
			b := mesh.Vertices[t.B]
			c := mesh.Vertices[t.C]
			nx, ny, nz := faceNormal(a, b, c)
			fmt.Fprintf(&buf, "  facet normal %g %g %g\n", nx, ny, nz)
			buf.WriteString("    outer loop\n")
			for _, v := range []geometry.Vertex{a, b, c} {
				fmt.Fprintf(&buf, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
			}
			buf.WriteString("    endloop\n")
			buf.WriteString("  endfacet\n")
		}
	}
	buf.WriteString("endsolid planscape\n")
	return buf.Bytes(), nil
}

// encodeGLTF emits a minimal glTF 2.0 document with positions and indices in
// one embedded data-URI buffer.
func encodeGLTF(model *geometry.Model3D) ([]byte, error) {
	var bin bytes.Buffer

	type accessor struct {
		BufferView    int       `json:"bufferView"`
		ComponentType int       `json:"componentType"`
		Count         int       `json:"count"`
		Type          string    `json:"type"`
		Min           []float64 `json:"min,omitempty"`
		Max           []float64 `json:"max,omitempty"`
	}
	type bufferView struct {
		Buffer     int `json:"buffer"`
		ByteOffset int `json:"byteOffset"`
		ByteLength int `json:"byteLength"`
	}
	type primitive struct {
		Attributes map[string]int `json:"attributes"`
		Indices    int            `json:"indices"`
	}
	type gltfMesh struct {
		Name       string      `json:"name"`
		Primitives []primitive `json:"primitives"`
	}

	var views []bufferView
	var accessors []accessor
	var meshes []gltfMesh
	var nodes []map[string]any
	var sceneNodes []int

	for _, mesh := range model.Meshes {
		posOffset := bin.Len()
		minV := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		maxV := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for _, v := range mesh.Vertices {
			for i, f := range []float64{v.X, v.Y, v.Z} {
				if err := binary.Write(&bin, binary.LittleEndian, float32(f)); err != nil {
					return nil, err
				}
				minV[i] = math.Min(minV[i], f)
				maxV[i] = math.Max(maxV[i], f)
			}
		}
		posView := len(views)
		views = append(views, bufferView{Buffer: 0, ByteOffset: posOffset, ByteLength: bin.Len() - posOffset})
		posAccessor := len(accessors)
		accessors = append(accessors, accessor{
			BufferView: posView, ComponentType: 5126, Count: len(mesh.Vertices),
			Type: "VEC3", Min: minV, Max: maxV,
		})

		idxOffset := bin.Len()
		for _, t := range mesh.Triangles {
			for _, i := range []int{t.A, t.B, t.C} {
				if err := binary.Write(&bin, binary.LittleEndian, uint32(i)); err != nil {
					return nil, err
				}
			}
		}
		idxView := len(views)
		views = append(views, bufferView{Buffer: 0, ByteOffset: idxOffset, ByteLength: bin.Len() - idxOffset})
		idxAccessor := len(accessors)
		accessors = append(accessors, accessor{
			BufferView: idxView, ComponentType: 5125, Count: len(mesh.Triangles) * 3,
			Type: "SCALAR",
		})

		meshIndex := len(meshes)
		meshes = append(meshes, gltfMesh{
			Name: mesh.Name,
			Primitives: []primitive{{
				Attributes: map[string]int{"POSITION": posAccessor},
				Indices:    idxAccessor,
			}},
		})
		sceneNodes = append(sceneNodes, len(nodes))
		nodes = append(nodes, map[string]any{"mesh": meshIndex, "name": mesh.Name})
	}

	doc := map[string]any{
		"asset":       map[string]any{"version": "2.0", "generator": "planscape-backend"},
		"scene":       0,
		"scenes":      []map[string]any{{"nodes": sceneNodes}},
		"nodes":       nodes,
		"meshes":      meshes,
		"accessors":   accessors,
		"bufferViews": views,
		"buffers": []map[string]any{{
			"byteLength": bin.Len(),
			"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin.Bytes()),
		}},
	}
	return json.MarshalIndent(doc, "", "  ")
}

func faceNormal(a, b, c geometry.Vertex) (float64, float64, float64) {
	ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	length := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if length == 0 {
		return 0, 0, 0
	}
	return nx / length, ny / length, nz / length
}
