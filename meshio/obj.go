package meshio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/flywave/go3d/vec3"

	"github.com/gogpu/edgefriend"
)

// objShape is one o/g group of faces and the crease tags read while it
// was open.
type objShape struct {
	name    string
	indices []int32
	offsets []int32
	creases []objCrease
}

type objCrease struct {
	a, b      int32
	sharpness float32
	line      int
}

// objFile is a parsed OBJ file. Positions are shared by all shapes.
type objFile struct {
	positions []vec3.T
	shapes    []objShape
}

// parseOBJ reads v, f, o, g and t lines. Texture coordinates, normals,
// materials and smoothing groups are skipped.
func parseOBJ(r io.Reader) (*objFile, error) {
	var (
		file objFile
		cur  objShape
	)
	commit := func() {
		if len(cur.offsets) > 0 {
			file.shapes = append(file.shapes, cur)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			p, err := parseVertex(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			file.positions = append(file.positions, p)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w: face with %d corners", line, ErrMalformed, len(fields)-1)
			}
			cur.offsets = append(cur.offsets, int32(len(cur.indices)))
			for _, tok := range fields[1:] {
				idx, err := parseFaceIndex(tok, len(file.positions))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				cur.indices = append(cur.indices, idx)
			}
		case "o", "g":
			// A group without faces yet hands its tags to the next one.
			var pending []objCrease
			if len(cur.offsets) == 0 {
				pending = cur.creases
			}
			commit()
			cur = objShape{name: strings.Join(fields[1:], " "), creases: pending}
		case "t":
			c, ok, err := parseCreaseTag(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if ok {
				c.line = line
				cur.creases = append(cur.creases, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	commit()

	n := int32(len(file.positions))
	for _, s := range file.shapes {
		for _, idx := range s.indices {
			if idx >= n {
				return nil, fmt.Errorf("%w: vertex %d referenced, %d defined", ErrMalformed, idx+1, n)
			}
		}
	}
	return &file, nil
}

func parseVertex(args []string) (vec3.T, error) {
	var p vec3.T
	if len(args) < 3 {
		return p, fmt.Errorf("%w: vertex with %d coordinates", ErrMalformed, len(args))
	}
	for c := 0; c < 3; c++ {
		f, err := strconv.ParseFloat(args[c], 32)
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p[c] = float32(f)
	}
	return p, nil
}

// parseFaceIndex resolves the position part of a v, v/vt, v//vn or
// v/vt/vn token to a 0-based index. Negative indices count back from the
// last vertex defined so far.
func parseFaceIndex(tok string, defined int) (int32, error) {
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	v, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: face index %q", ErrMalformed, tok)
	}
	switch {
	case v > 0:
		return int32(v - 1), nil
	case v < 0 && int(-v) <= defined:
		return int32(int64(defined) + v), nil
	}
	return 0, fmt.Errorf("%w: face index %d", ErrMalformed, v)
}

// parseCreaseTag parses the arguments of a t line. Tags other than crease
// are reported as not ok without error.
//
//	t crease 2/1 a b sharpness
func parseCreaseTag(args []string) (objCrease, bool, error) {
	var c objCrease
	if len(args) == 0 || args[0] != "crease" {
		return c, false, nil
	}
	if len(args) < 2 {
		return c, false, fmt.Errorf("%w: crease tag without counts", ErrMalformed)
	}
	counts := strings.Split(args[1], "/")
	if len(counts) < 2 {
		return c, false, fmt.Errorf("%w: crease tag counts %q", ErrMalformed, args[1])
	}
	nInts, err1 := strconv.Atoi(counts[0])
	nFloats, err2 := strconv.Atoi(counts[1])
	if err1 != nil || err2 != nil || nInts != 2 || nFloats < 1 {
		return c, false, fmt.Errorf("%w: crease tag counts %q, want 2/1", ErrMalformed, args[1])
	}
	vals := args[2:]
	if len(vals) < nInts+nFloats {
		return c, false, fmt.Errorf("%w: crease tag has %d values, want %d", ErrMalformed, len(vals), nInts+nFloats)
	}

	a, err := strconv.ParseInt(vals[0], 10, 32)
	if err != nil || a < 0 {
		return c, false, fmt.Errorf("%w: crease vertex %q", ErrMalformed, vals[0])
	}
	b, err := strconv.ParseInt(vals[1], 10, 32)
	if err != nil || b < 0 {
		return c, false, fmt.Errorf("%w: crease vertex %q", ErrMalformed, vals[1])
	}
	s, err := strconv.ParseFloat(vals[2], 32)
	if err != nil || math.IsNaN(s) || s < 0 {
		return c, false, fmt.Errorf("%w: crease sharpness %q", ErrMalformed, vals[2])
	}
	c.a, c.b, c.sharpness = int32(a), int32(b), float32(s)
	return c, true, nil
}

// loadOBJ builds a RawMesh from the first shape of an OBJ file.
func loadOBJ(path string) (edgefriend.RawMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return edgefriend.RawMesh{}, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	file, err := parseOBJ(f)
	if err != nil {
		return edgefriend.RawMesh{}, &LoadError{Path: path, Err: err}
	}
	if len(file.shapes) == 0 {
		return edgefriend.RawMesh{}, fmt.Errorf("%w: %s", ErrEmptyMesh, path)
	}
	log := edgefriend.Logger()
	if len(file.shapes) > 1 {
		log.Warn("meshio: more than one shape, using the first",
			"path", path, "shapes", len(file.shapes), "used", file.shapes[0].name)
	}

	s := file.shapes[0]
	raw := edgefriend.RawMesh{
		Positions:      file.positions,
		Indices:        s.indices,
		IndicesOffsets: s.offsets,
	}
	for _, c := range s.creases {
		prev := raw.Crease(c.a, c.b)
		if raw.SetCrease(c.a, c.b, c.sharpness) {
			log.Debug("meshio: crease overwritten",
				"path", path, "line", c.line, "edge", edgefriend.MakeEdge(c.a, c.b),
				"old", prev, "new", c.sharpness)
		}
	}
	return raw, nil
}

// WriteOBJ stores g as OBJ text: one v line per vertex, then one f line
// per quad with 1-based indices. Coordinates are written with the
// shortest decimal form that reads back as the same float32.
func WriteOBJ(path string, g *edgefriend.Geometry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("meshio: write %s: %w", path, cerr)
		}
	}()

	if err := encodeOBJ(f, g); err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	return nil
}

func encodeOBJ(w io.Writer, g *edgefriend.Geometry) error {
	bw := bufio.NewWriter(w)
	var b []byte
	for _, p := range g.Positions {
		b = append(b[:0], 'v')
		for c := 0; c < 3; c++ {
			b = append(b, ' ')
			b = strconv.AppendFloat(b, float64(p[c]), 'g', -1, 32)
		}
		b = append(b, '\n')
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	for f := 0; f < g.FaceCount(); f++ {
		b = append(b[:0], 'f')
		for _, v := range g.Face(f) {
			b = append(b, ' ')
			b = strconv.AppendUint(b, uint64(v)+1, 10)
		}
		b = append(b, '\n')
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readOBJGeometry reads back a file written by WriteOBJ. Only positions
// and quads are stored in OBJ, so the links of the result are zero.
func readOBJGeometry(path string) (edgefriend.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return edgefriend.Geometry{}, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	file, err := parseOBJ(f)
	if err != nil {
		return edgefriend.Geometry{}, &LoadError{Path: path, Err: err}
	}
	g := edgefriend.Geometry{Positions: file.positions}
	for _, s := range file.shapes {
		for i := range s.offsets {
			end := len(s.indices)
			if i+1 < len(s.offsets) {
				end = int(s.offsets[i+1])
			}
			face := s.indices[s.offsets[i]:end]
			if len(face) != 4 {
				return edgefriend.Geometry{}, &LoadError{
					Path: path,
					Err:  fmt.Errorf("%w: face %d has %d corners, want 4", ErrMalformed, g.FaceCount(), len(face)),
				}
			}
			for _, v := range face {
				g.Indices = append(g.Indices, uint32(v))
			}
			g.FriendsAndSharpnesses = append(g.FriendsAndSharpnesses, edgefriend.FriendRecord{})
		}
	}
	return g, nil
}
