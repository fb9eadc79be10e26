package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// LoadOBJ reads a Wavefront OBJ file. Only vertex positions and faces are
// used; normals, texture coordinates, materials and groups are skipped.
// Faces with more than three corners are fan-triangulated.
func LoadOBJ(path string) (*TriMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", path, err)
	}
	return m, nil
}

// ReadOBJ parses OBJ data from a reader.
func ReadOBJ(r io.Reader) (*TriMesh, error) {
	var (
		verts   []mgl32.Vec3
		indices []uint32
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", lineno)
			}
			var v mgl32.Vec3
			for k := 0; k < 3; k++ {
				f, err := strconv.ParseFloat(fields[k+1], 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineno, err)
				}
				v[k] = float32(f)
			}
			verts = append(verts, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs 3 corners", lineno)
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, fld := range fields[1:] {
				// A corner is "v", "v/vt", "v//vn" or "v/vt/vn"; only the
				// position index matters here.
				idxStr, _, _ := strings.Cut(fld, "/")
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineno, err)
				}
				if idx < 0 {
					idx += len(verts)
				} else {
					idx--
				}
				if idx < 0 || idx >= len(verts) {
					return nil, fmt.Errorf("line %d: vertex index %s out of range", lineno, idxStr)
				}
				face = append(face, uint32(idx))
			}
			for i := 2; i < len(face); i++ {
				indices = append(indices, face[0], face[i-1], face[i])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(verts) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("no triangles")
	}
	return &TriMesh{Verts: verts, Indices: indices}, nil
}
