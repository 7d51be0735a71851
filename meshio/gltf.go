package meshio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"

	"github.com/gogpu/edgefriend"
)

const gltfVersion = "2.0"

// newDocument returns an empty document with one scene and one buffer.
func newDocument() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = gltfVersion
	doc.Asset.Generator = "edgefriend"
	scene := uint32(0)
	doc.Scene = &scene
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

// buildDocument stores g as one triangle mesh. Quad (a, b, c, d) becomes
// the triangles (a, b, c) and (a, c, d).
func buildDocument(g *edgefriend.Geometry) *gltf.Document {
	doc := newDocument()
	buffer := doc.Buffers[0]

	var buf bytes.Buffer
	for f := 0; f < g.FaceCount(); f++ {
		q := g.Face(f)
		binary.Write(&buf, binary.LittleEndian, [6]uint32{q[0], q[1], q[2], q[0], q[2], q[3]})
	}
	indices := &gltf.BufferView{
		Buffer:     0,
		ByteLength: uint32(buf.Len()),
		Target:     gltf.TargetElementArrayBuffer,
	}
	doc.BufferViews = append(doc.BufferViews, indices)

	positions := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(buf.Len()),
		Target:     gltf.TargetArrayBuffer,
	}
	binary.Write(&buf, binary.LittleEndian, g.Positions)
	positions.ByteLength = uint32(buf.Len()) - positions.ByteOffset
	doc.BufferViews = append(doc.BufferViews, positions)

	buffer.ByteLength = uint32(buf.Len())
	buffer.Data = buf.Bytes()

	indexView, posView := uint32(0), uint32(1)
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    &indexView,
		ComponentType: gltf.ComponentUint,
		Type:          gltf.AccessorScalar,
		Count:         uint32(6 * g.FaceCount()),
	})
	posAcc := &gltf.Accessor{
		BufferView:    &posView,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(g.VertexCount()),
	}
	if g.VertexCount() > 0 {
		lo, hi := bounds(g.Positions)
		posAcc.Min = []float32{lo[0], lo[1], lo[2]}
		posAcc.Max = []float32{hi[0], hi[1], hi[2]}
	}
	doc.Accessors = append(doc.Accessors, posAcc)

	indexAcc, posIdx := uint32(0), uint32(1)
	prim := &gltf.Primitive{
		Attributes: make(gltf.Attribute),
		Indices:    &indexAcc,
		Mode:       gltf.PrimitiveTriangles,
	}
	prim.Attributes["POSITION"] = posIdx
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "edgefriend", Primitives: []*gltf.Primitive{prim}})

	mesh := uint32(0)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: &mesh})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func bounds(ps []vec3.T) (lo, hi vec3.T) {
	lo, hi = ps[0], ps[0]
	for _, p := range ps[1:] {
		for c := 0; c < 3; c++ {
			lo[c] = min(lo[c], p[c])
			hi[c] = max(hi[c], p[c])
		}
	}
	return lo, hi
}

// WriteGLTF stores g as glTF. The file is binary GLB when path ends in
// .glb and JSON with an embedded buffer otherwise.
func WriteGLTF(path string, g *edgefriend.Geometry) error {
	f, err := FormatOf(path)
	return writeGLTF(path, g, err == nil && f == FormatGLB)
}

func writeGLTF(path string, g *edgefriend.Geometry, binaryOut bool) (err error) {
	doc := buildDocument(g)
	if !binaryOut {
		doc.Buffers[0].EmbeddedResource()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("meshio: write %s: %w", path, cerr)
		}
	}()

	enc := gltf.NewEncoder(f)
	enc.AsBinary = binaryOut
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	return nil
}

// gltfTriangles is the first triangle primitive of a document.
type gltfTriangles struct {
	positions []vec3.T
	indices   []uint32
	// extra counts meshes and primitives other than the one used.
	extra int
}

func readTriangles(doc *gltf.Document) (*gltfTriangles, error) {
	var (
		out   gltfTriangles
		found *gltf.Primitive
	)
	for _, m := range doc.Meshes {
		for _, p := range m.Primitives {
			if found == nil && p.Mode == gltf.PrimitiveTriangles {
				found = p
				continue
			}
			out.extra++
		}
	}
	if found == nil {
		return nil, nil
	}

	posIdx, ok := found.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("%w: primitive without POSITION", ErrMalformed)
	}
	acc, err := accessor(doc, posIdx)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorVec3 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%w: POSITION accessor %d is not float VEC3", ErrMalformed, posIdx)
	}
	data, stride, err := accessorData(doc, acc, 12)
	if err != nil {
		return nil, err
	}
	out.positions = make([]vec3.T, acc.Count)
	for i := range out.positions {
		b := data[i*stride:]
		for c := 0; c < 3; c++ {
			out.positions[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*c:]))
		}
	}

	if found.Indices == nil {
		out.indices = make([]uint32, len(out.positions))
		for i := range out.indices {
			out.indices[i] = uint32(i)
		}
	} else if out.indices, err = readIndices(doc, *found.Indices); err != nil {
		return nil, err
	}
	if len(out.indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d triangle indices", ErrMalformed, len(out.indices))
	}
	for _, v := range out.indices {
		if int(v) >= len(out.positions) {
			return nil, fmt.Errorf("%w: vertex %d referenced, %d defined", ErrMalformed, v, len(out.positions))
		}
	}
	return &out, nil
}

func readIndices(doc *gltf.Document, idx uint32) ([]uint32, error) {
	acc, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("%w: index accessor %d is not SCALAR", ErrMalformed, idx)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("%w: index accessor %d has component type %v", ErrMalformed, idx, acc.ComponentType)
	}
	data, stride, err := accessorData(doc, acc, size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, acc.Count)
	for i := range out {
		b := data[i*stride:]
		switch size {
		case 1:
			out[i] = uint32(b[0])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(b))
		default:
			out[i] = binary.LittleEndian.Uint32(b)
		}
	}
	return out, nil
}

func accessor(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) || doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrMalformed, idx)
	}
	return doc.Accessors[idx], nil
}

// accessorData returns the bytes an accessor covers, starting at its
// first element, and the distance between elements.
func accessorData(doc *gltf.Document, acc *gltf.Accessor, elem int) ([]byte, int, error) {
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("%w: sparse or empty accessors are not supported", ErrMalformed)
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("%w: buffer view %d out of range", ErrMalformed, *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("%w: buffer %d out of range", ErrMalformed, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data

	stride := int(view.ByteStride)
	if stride == 0 {
		stride = elem
	}
	start := int(view.ByteOffset) + int(acc.ByteOffset)
	end := int(view.ByteOffset) + int(view.ByteLength)
	if acc.Count > 0 {
		if need := start + (int(acc.Count)-1)*stride + elem; need > end {
			return nil, 0, fmt.Errorf("%w: accessor overruns its buffer view", ErrMalformed)
		}
	}
	if end > len(data) || start > end {
		return nil, 0, fmt.Errorf("%w: buffer view overruns its buffer", ErrMalformed)
	}
	return data[start:end], stride, nil
}

// loadGLTF builds a RawMesh of triangles from the first triangle
// primitive of a .gltf or .glb file. glTF has no crease tags.
func loadGLTF(path string) (edgefriend.RawMesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return edgefriend.RawMesh{}, &LoadError{Path: path, Err: err}
	}
	tris, err := readTriangles(doc)
	if err != nil {
		return edgefriend.RawMesh{}, &LoadError{Path: path, Err: err}
	}
	if tris == nil || len(tris.indices) == 0 {
		return edgefriend.RawMesh{}, fmt.Errorf("%w: %s", ErrEmptyMesh, path)
	}
	if tris.extra > 0 {
		edgefriend.Logger().Warn("meshio: more than one shape, using the first",
			"path", path, "shapes", tris.extra+1)
	}

	raw := edgefriend.RawMesh{Positions: tris.positions}
	for i := 0; i < len(tris.indices); i += 3 {
		t := tris.indices[i : i+3]
		raw.AddFace(int32(t[0]), int32(t[1]), int32(t[2]))
	}
	return raw, nil
}

// readGLTFGeometry reads back a file written by WriteGLTF, joining each
// pair of triangles into the quad it was split from.
func readGLTFGeometry(path string) (edgefriend.Geometry, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return edgefriend.Geometry{}, &LoadError{Path: path, Err: err}
	}
	tris, err := readTriangles(doc)
	if err != nil {
		return edgefriend.Geometry{}, &LoadError{Path: path, Err: err}
	}
	if tris == nil {
		return edgefriend.Geometry{}, nil
	}
	if len(tris.indices)%6 != 0 {
		return edgefriend.Geometry{}, &LoadError{
			Path: path,
			Err:  fmt.Errorf("%w: %d triangles do not pair into quads", ErrMalformed, len(tris.indices)/3),
		}
	}

	g := edgefriend.Geometry{Positions: tris.positions}
	for i := 0; i < len(tris.indices); i += 6 {
		t := tris.indices[i : i+6]
		if t[3] != t[0] || t[4] != t[2] {
			return edgefriend.Geometry{}, &LoadError{
				Path: path,
				Err:  fmt.Errorf("%w: triangles %d and %d are not a split quad", ErrMalformed, i/3, i/3+1),
			}
		}
		g.Indices = append(g.Indices, t[0], t[1], t[2], t[5])
		g.FriendsAndSharpnesses = append(g.FriendsAndSharpnesses, edgefriend.FriendRecord{})
	}
	return g, nil
}
