package edgefriend

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/flywave/go3d/vec3"
)

func TestCompareRejectsEpsilon(t *testing.T) {
	g := singleQuad()
	for _, eps := range []float32{0, -1, float32(math.NaN()), float32(math.Inf(1))} {
		if _, err := Compare(g, g, eps); !errors.Is(err, ErrInvalidEpsilon) {
			t.Errorf("Compare(eps=%g) error = %v, want ErrInvalidEpsilon", eps, err)
		}
	}
}

func TestCompareRejectsShortIndices(t *testing.T) {
	g := singleQuad()
	short := g.Clone()
	short.Indices = short.Indices[:2]
	tests := []struct {
		name      string
		got, want Geometry
	}{
		{"got", short, g},
		{"want", g, short},
		{"both", short, short},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compare(tt.got, tt.want, 2e-5); !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("Compare() error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestCompareMatch(t *testing.T) {
	got := mustFromRaw(t, cubeRaw())
	want := got.Clone()
	want.Positions[3][1] += 1e-6
	r, err := Compare(got, want, 2e-5)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Match || r.Kind != NoMismatch || r.String() != "match" {
		t.Errorf("report = %+v, want match", r)
	}
}

func TestCompareMismatch(t *testing.T) {
	base := mustFromRaw(t, cubeRaw())

	t.Run("position", func(t *testing.T) {
		other := base.Clone()
		other.Positions[5] = vec3.T{7, 8, 9}
		other.Positions[9][0] += 1
		r, err := Compare(base, other, 2e-5)
		if err != nil {
			t.Fatal(err)
		}
		if r.Match || r.Kind != PositionMismatch || r.Index != 5 {
			t.Fatalf("report = %+v, want first position mismatch at 5", r)
		}
		if !strings.HasPrefix(r.String(), "vertex mismatch at 5:") {
			t.Errorf("String() = %q", r.String())
		}
	})

	t.Run("nan", func(t *testing.T) {
		other := base.Clone()
		other.Positions[0][2] = float32(math.NaN())
		r, _ := Compare(base, other, 1)
		if r.Kind != PositionMismatch || r.Index != 0 {
			t.Errorf("report = %+v, want NaN to mismatch", r)
		}
	})

	t.Run("vertex count", func(t *testing.T) {
		other := base.Clone()
		other.Positions = other.Positions[:len(other.Positions)-1]
		r, _ := Compare(base, other, 2e-5)
		if r.Kind != VertexCountMismatch || r.GotCount != 26 || r.WantCount != 25 {
			t.Errorf("report = %+v", r)
		}
	})

	t.Run("face count", func(t *testing.T) {
		other := base.Clone()
		other.Indices = other.Indices[:len(other.Indices)-4]
		other.FriendsAndSharpnesses = other.FriendsAndSharpnesses[:len(other.FriendsAndSharpnesses)-1]
		r, _ := Compare(base, other, 2e-5)
		if r.Kind != FaceCountMismatch {
			t.Errorf("report = %+v", r)
		}
	})

	t.Run("face", func(t *testing.T) {
		other := base.Clone()
		other.Indices[4*7+1], other.Indices[4*7+2] = other.Indices[4*7+2], other.Indices[4*7+1]
		r, _ := Compare(base, other, 2e-5)
		if r.Kind != FaceMismatch || r.Index != 7 {
			t.Fatalf("report = %+v, want face mismatch at 7", r)
		}
		if !strings.HasPrefix(r.String(), "face mismatch at 7:") {
			t.Errorf("String() = %q", r.String())
		}
	})
}

func TestMismatchKindString(t *testing.T) {
	if got := MismatchKind(42).String(); got != "MismatchKind(42)" {
		t.Errorf("String() = %q", got)
	}
	if got := VertexCountMismatch.String(); got != "vertex count" {
		t.Errorf("String() = %q", got)
	}
}
