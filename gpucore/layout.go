package gpucore

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/edgefriend"
)

// Per-element byte strides of the four geometry sections.
const (
	PositionStride = 12 // vec3<f32>, packed
	IndexStride    = 4  // one u32 corner index
	FriendStride   = 16 // vec4<u32> friend record
	ValenceStride  = 4  // packed start/valence word

	// SectionAlignment is the alignment of every section offset. 256 is
	// the largest minStorageBufferOffsetAlignment WebGPU allows, so each
	// section can be bound on its own.
	SectionAlignment = 256
)

var (
	// ErrLayoutOverflow is returned when a section does not fit 32-bit
	// byte addressing.
	ErrLayoutOverflow = errors.New("gpucore: buffer layout overflows")

	// ErrStaleLayout is returned when a layout is used for a shape it was
	// not planned for.
	ErrStaleLayout = errors.New("gpucore: buffer layout does not match shape")
)

// Section names one of the four arrays of a generation.
type Section int

// Sections in buffer order.
const (
	SectionPositions Section = iota
	SectionIndices
	SectionFriends
	SectionValence

	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionPositions:
		return "positions"
	case SectionIndices:
		return "indices"
	case SectionFriends:
		return "friends"
	case SectionValence:
		return "valence"
	default:
		return fmt.Sprintf("Section(%d)", int(s))
	}
}

// Layout places the four arrays of one generation in a single buffer:
//
//	[positions][pad][indices][pad][friend records][pad][valence words][pad]
//
// with 0 <= PositionBytes <= IndexOffset <= FriendOffset <= ValenceOffset
// <= Total and every offset a multiple of SectionAlignment. A Layout is
// derived from a Shape and only valid for that shape.
type Layout struct {
	shape edgefriend.Shape

	PositionBytes uint64

	IndexOffset uint64
	IndexBytes  uint64

	FriendOffset uint64
	FriendBytes  uint64

	ValenceOffset uint64
	ValenceBytes  uint64

	// Total is the buffer size needed for this generation.
	Total uint64
}

// PlanLayout computes the layout of a generation with shape s. Zero counts
// give empty sections at the same offset.
func PlanLayout(s edgefriend.Shape) (Layout, error) {
	sizes := [sectionCount]uint64{
		SectionPositions: uint64(s.Vertices) * PositionStride,
		SectionIndices:   4 * uint64(s.Faces) * IndexStride,
		SectionFriends:   uint64(s.Faces) * FriendStride,
		SectionValence:   uint64(s.Vertices) * ValenceStride,
	}
	for sec, n := range sizes {
		if n > math.MaxUint32 {
			return Layout{}, fmt.Errorf("%w: %s section needs %d bytes (%v)",
				ErrLayoutOverflow, Section(sec), n, s)
		}
	}

	l := Layout{
		shape:         s,
		PositionBytes: sizes[SectionPositions],
		IndexBytes:    sizes[SectionIndices],
		FriendBytes:   sizes[SectionFriends],
		ValenceBytes:  sizes[SectionValence],
	}
	l.IndexOffset = AlignUp(l.PositionBytes, SectionAlignment)
	l.FriendOffset = AlignUp(l.IndexOffset+l.IndexBytes, SectionAlignment)
	l.ValenceOffset = AlignUp(l.FriendOffset+l.FriendBytes, SectionAlignment)
	l.Total = AlignUp(l.ValenceOffset+l.ValenceBytes, SectionAlignment)
	return l, nil
}

// Shape returns the counts the layout was planned for.
func (l Layout) Shape() edgefriend.Shape { return l.shape }

// Matches reports whether the layout was planned for s.
func (l Layout) Matches(s edgefriend.Shape) bool { return l.shape == s }

// Check returns ErrStaleLayout unless the layout was planned for s.
func (l Layout) Check(s edgefriend.Shape) error {
	if !l.Matches(s) {
		return fmt.Errorf("%w: planned for %v, used for %v", ErrStaleLayout, l.shape, s)
	}
	return nil
}

// Section returns the byte range of one section.
func (l Layout) Section(s Section) (offset, size uint64) {
	switch s {
	case SectionPositions:
		return 0, l.PositionBytes
	case SectionIndices:
		return l.IndexOffset, l.IndexBytes
	case SectionFriends:
		return l.FriendOffset, l.FriendBytes
	case SectionValence:
		return l.ValenceOffset, l.ValenceBytes
	}
	panic(fmt.Sprintf("gpucore: invalid section %d", int(s)))
}

// Sections lists all sections in buffer order.
func Sections() []Section {
	return []Section{SectionPositions, SectionIndices, SectionFriends, SectionValence}
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
