package meshio

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"

	"github.com/gogpu/edgefriend"
)

const cubeOBJ = `# unit cube
o cube
v -1 -1 -1
v 1 -1 -1
v 1 1 -1
v -1 1 -1
v -1 -1 1
v 1 -1 1
v 1 1 1
v -1 1 1
vn 0 0 1
f 1//1 4//1 3//1 2//1
f 5/1/1 6/1/1 7/1/1 8/1/1
f 1 2 6 5
f 3 4 8 7
f 2 3 7 6
f -8 -4 -1 -5
t crease 2/1 3 7 1
t crease 2/1 7 3 2.5
t crease 2/1 4 5 0.5
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// captureLog routes edgefriend's logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := edgefriend.Logger()
	t.Cleanup(func() { edgefriend.SetLogger(orig) })
	var buf bytes.Buffer
	edgefriend.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestLoadOBJCube(t *testing.T) {
	logs := captureLog(t)
	raw, err := LoadRawMesh(writeFile(t, "cube.obj", cubeOBJ))
	if err != nil {
		t.Fatalf("LoadRawMesh: %v", err)
	}
	if len(raw.Positions) != 8 || raw.FaceCount() != 6 {
		t.Fatalf("got %d positions, %d faces, want 8 and 6", len(raw.Positions), raw.FaceCount())
	}
	// Negative indices count back from the last vertex.
	if got, want := raw.Face(5), []int32{0, 4, 7, 3}; !equalInts(got, want) {
		t.Errorf("Face(5) = %v, want %v", got, want)
	}
	if got, want := raw.Face(1), []int32{4, 5, 6, 7}; !equalInts(got, want) {
		t.Errorf("Face(1) = %v, want %v", got, want)
	}

	if len(raw.Creases) != 2 {
		t.Fatalf("Creases = %v, want 2 entries", raw.Creases)
	}
	if s := raw.Creases[edgefriend.Edge{A: 3, B: 7}]; s != 2.5 {
		t.Errorf("crease (3,7) = %g, want the last written 2.5", s)
	}
	if s := raw.Crease(5, 4); s != 0.5 {
		t.Errorf("crease (4,5) = %g, want 0.5", s)
	}
	if !strings.Contains(logs.String(), "crease overwritten") {
		t.Errorf("no debug record for the overwritten crease: %s", logs.String())
	}

	if _, err := edgefriend.FromRawMesh(raw, 1); err != nil {
		t.Errorf("FromRawMesh(loaded cube) = %v", err)
	}
}

func TestLoadOBJFirstShapeOnly(t *testing.T) {
	logs := captureLog(t)
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 2 0 0
v 2 1 0
o first
f 1 2 3 4
t crease 2/1 0 1 1
o second
f 2 5 6 3
t crease 2/1 1 4 3
`
	raw, err := LoadRawMesh(writeFile(t, "two.obj", src))
	if err != nil {
		t.Fatalf("LoadRawMesh: %v", err)
	}
	if raw.FaceCount() != 1 {
		t.Errorf("FaceCount() = %d, want 1", raw.FaceCount())
	}
	if len(raw.Positions) != 6 {
		t.Errorf("positions = %d, want all 6", len(raw.Positions))
	}
	if len(raw.Creases) != 1 || raw.Crease(0, 1) != 1 {
		t.Errorf("Creases = %v, want only the first shape's (0,1)", raw.Creases)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "shapes=2") {
		t.Errorf("expected a warning naming 2 shapes, got: %s", logs.String())
	}
}

func TestLoadOBJTagsBeforeGroup(t *testing.T) {
	src := `t crease 2/1 0 1 4
g quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`
	raw, err := LoadRawMesh(writeFile(t, "tags.obj", src))
	if err != nil {
		t.Fatal(err)
	}
	if raw.Crease(1, 0) != 4 {
		t.Errorf("Creases = %v, want (0,1) carried into the group", raw.Creases)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		empty   bool
		is      error
	}{
		{name: "no faces", file: "points.obj", content: "v 0 0 0\nv 1 0 0\n", empty: true},
		{name: "empty file", file: "empty.obj", content: "", empty: true},
		{name: "bad vertex", file: "v.obj", content: "v 0 zero 0\n", is: ErrMalformed},
		{name: "short vertex", file: "v2.obj", content: "v 0 0\n", is: ErrMalformed},
		{name: "two corners", file: "f.obj", content: "v 0 0 0\nv 1 0 0\nf 1 2\n", is: ErrMalformed},
		{name: "index zero", file: "z.obj", content: "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 0 1 2\n", is: ErrMalformed},
		{name: "index past end", file: "p.obj", content: "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 9\n", is: ErrMalformed},
		{name: "relative before start", file: "r.obj", content: "v 0 0 0\nf -1 -2 -3\n", is: ErrMalformed},
		{name: "crease counts", file: "c.obj", content: "t crease 1/1 3 1\n", is: ErrMalformed},
		{name: "crease negative", file: "n.obj", content: "t crease 2/1 -1 2 1\n", is: ErrMalformed},
		{name: "unknown extension", file: "mesh.ply", content: "ply\n", is: ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := LoadRawMesh(path)
			if tt.empty {
				if !errors.Is(err, ErrEmptyMesh) {
					t.Fatalf("error = %v, want ErrEmptyMesh", err)
				}
				return
			}
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *LoadError", err)
			}
			if le.Path != path {
				t.Errorf("LoadError.Path = %q, want %q", le.Path, path)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
			if !strings.Contains(err.Error(), "could not be loaded") {
				t.Errorf("message %q lacks 'could not be loaded'", err.Error())
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.obj")
	_, err := LoadRawMesh(path)
	var le *LoadError
	if !errors.As(err, &le) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want *LoadError wrapping os.ErrNotExist", err)
	}
}

func TestOutputNames(t *testing.T) {
	if got := OutputName(3, FormatOBJ); got != "output_3iter.obj" {
		t.Errorf("OutputName = %q", got)
	}
	if got := ReferenceOutputName(1, FormatGLB); got != "output_cpp_1iter.glb" {
		t.Errorf("ReferenceOutputName = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"obj", FormatOBJ, false},
		{".OBJ", FormatOBJ, false},
		{"gltf", FormatGLTF, false},
		{"glb", FormatGLB, false},
		{"stl", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if f, err := FormatOf("out/mesh.glb"); err != nil || f != FormatGLB {
		t.Errorf("FormatOf(.glb) = %v, %v", f, err)
	}
}

// refined returns the cube after one refinement step.
func refined(t *testing.T) edgefriend.Geometry {
	t.Helper()
	raw, err := LoadRawMesh(writeFile(t, "cube.obj", cubeOBJ))
	if err != nil {
		t.Fatal(err)
	}
	g, err := edgefriend.FromRawMesh(raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	g, err = edgefriend.Subdivide(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWriteRoundTrip(t *testing.T) {
	g := refined(t)
	for _, f := range []Format{FormatOBJ, FormatGLTF, FormatGLB} {
		t.Run(f.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), OutputName(1, f))
			if err := Write(path, f, &g); err != nil {
				t.Fatalf("Write: %v", err)
			}
			back, err := ReadGeometry(path)
			if err != nil {
				t.Fatalf("ReadGeometry: %v", err)
			}
			report, err := edgefriend.Compare(back, g, 1e-7)
			if err != nil {
				t.Fatal(err)
			}
			if !report.Match {
				t.Errorf("round trip differs: %v", report)
			}
		})
	}
}

func TestWriteOBJText(t *testing.T) {
	g := edgefriend.Geometry{
		Positions:             []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 0.1, 0}},
		Indices:               []uint32{0, 1, 2, 3},
		FriendsAndSharpnesses: make([]edgefriend.FriendRecord, 1),
		ValenceStartInfos:     make([]uint32, 4),
	}
	var buf bytes.Buffer
	if err := encodeOBJ(&buf, &g); err != nil {
		t.Fatal(err)
	}
	want := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 0.1 0\nf 1 2 3 4\n"
	if buf.String() != want {
		t.Errorf("encodeOBJ =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestGLTFQuadPairs(t *testing.T) {
	g := edgefriend.Geometry{
		Positions:             []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {2, 0, 0}, {2, 1, 0}},
		Indices:               []uint32{0, 1, 2, 3, 1, 4, 5, 2},
		FriendsAndSharpnesses: make([]edgefriend.FriendRecord, 2),
		ValenceStartInfos:     make([]uint32, 6),
	}
	for _, name := range []string{"pairs.gltf", "pairs.glb"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteGLTF(path, &g); err != nil {
				t.Fatal(err)
			}
			doc, err := gltf.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			prim := doc.Meshes[0].Primitives[0]
			if prim.Mode != gltf.PrimitiveTriangles {
				t.Errorf("mode = %v, want triangles", prim.Mode)
			}
			tris, err := readIndices(doc, *prim.Indices)
			if err != nil {
				t.Fatal(err)
			}
			want := []uint32{0, 1, 2, 0, 2, 3, 1, 4, 5, 1, 5, 2}
			if !slices.Equal(tris, want) {
				t.Errorf("triangles = %v, want %v", tris, want)
			}

			back, err := ReadGeometry(path)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(back.Indices, g.Indices) {
				t.Errorf("quads read back = %v, want %v", back.Indices, g.Indices)
			}
		})
	}
}

func TestWriteGLBDocument(t *testing.T) {
	g := refined(t)
	path := filepath.Join(t.TempDir(), "out.glb")
	if err := WriteGLTF(path, &g); err != nil {
		t.Fatal(err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("gltf.Open: %v", err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("want one mesh with one primitive, got %d meshes", len(doc.Meshes))
	}
	prim := doc.Meshes[0].Primitives[0]
	if prim.Indices == nil {
		t.Fatal("primitive has no indices")
	}
	if got := doc.Accessors[*prim.Indices].Count; got != uint32(6*g.FaceCount()) {
		t.Errorf("index count = %d, want %d", got, 6*g.FaceCount())
	}
	pos := doc.Accessors[prim.Attributes["POSITION"]]
	if pos.Count != uint32(g.VertexCount()) {
		t.Errorf("position count = %d, want %d", pos.Count, g.VertexCount())
	}
	if len(pos.Min) != 3 || len(pos.Max) != 3 {
		t.Fatalf("position accessor min/max = %v/%v", pos.Min, pos.Max)
	}
	for c := 0; c < 3; c++ {
		if pos.Min[c] < -1 || pos.Max[c] > 1 || pos.Min[c] >= pos.Max[c] {
			t.Errorf("bounds[%d] = [%g, %g], want inside [-1, 1]", c, pos.Min[c], pos.Max[c])
		}
	}
}

func TestLoadGLTFTriangles(t *testing.T) {
	g := refined(t)
	path := filepath.Join(t.TempDir(), "in.gltf")
	if err := WriteGLTF(path, &g); err != nil {
		t.Fatal(err)
	}
	raw, err := LoadRawMesh(path)
	if err != nil {
		t.Fatalf("LoadRawMesh(gltf): %v", err)
	}
	if len(raw.Positions) != g.VertexCount() || raw.FaceCount() != 2*g.FaceCount() {
		t.Fatalf("got %d positions and %d triangles, want %d and %d",
			len(raw.Positions), raw.FaceCount(), g.VertexCount(), 2*g.FaceCount())
	}
	if len(raw.Creases) != 0 {
		t.Errorf("glTF input produced creases %v", raw.Creases)
	}
	if _, err := edgefriend.FromRawMesh(raw, 1); err != nil {
		t.Errorf("FromRawMesh(triangulated cube) = %v", err)
	}
}

func TestCompareFiles(t *testing.T) {
	g := refined(t)
	dir := t.TempDir()
	a := filepath.Join(dir, OutputName(1, FormatOBJ))
	b := filepath.Join(dir, ReferenceOutputName(1, FormatOBJ))
	if err := WriteOBJ(a, &g); err != nil {
		t.Fatal(err)
	}

	moved := g.Clone()
	moved.Positions[7][1] += 1e-3
	if err := WriteOBJ(b, &moved); err != nil {
		t.Fatal(err)
	}

	r, err := CompareFiles(a, b, 2e-5)
	if err != nil {
		t.Fatal(err)
	}
	if r.Match || r.Kind != edgefriend.PositionMismatch || r.Index != 7 {
		t.Errorf("CompareFiles = %v, want a vertex mismatch at 7", r)
	}
	if r, err := CompareFiles(a, b, 1e-2); err != nil || !r.Match {
		t.Errorf("CompareFiles(eps 1e-2) = %v, %v; want a match", r, err)
	}

	for _, eps := range []float32{0, -1} {
		if _, err := CompareFiles(a, filepath.Join(dir, "missing.obj"), eps); !errors.Is(err, edgefriend.ErrInvalidEpsilon) {
			t.Errorf("CompareFiles(eps %g) error = %v, want ErrInvalidEpsilon", eps, err)
		}
	}
}

func TestReadGeometryRejectsPolygons(t *testing.T) {
	path := writeFile(t, "tri.obj", "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 3\n")
	if _, err := ReadGeometry(path); !errors.Is(err, ErrMalformed) {
		t.Errorf("ReadGeometry(triangle) error = %v, want ErrMalformed", err)
	}
}

func equalInts(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
