package edgefriend

import "fmt"

// Link is the per-halfedge entry of a FriendRecord.
//
// Bit layout:
//
//	31     boundary flag
//	25..30 crease sharpness in quarter units (owned interior links only)
//	0..24  twin halfedge index, or boundary edge id when bit 31 is set
//
// The WGSL kernel decodes the same layout with the constants below.
type Link uint32

const (
	linkBoundaryBit  = 1 << 31
	linkSharpShift   = 25
	linkSharpMask    = 0x3f
	linkIndexMask    = 1<<25 - 1
	sharpnessQuantum = 0.25
)

// MaxHalfedges is the number of halfedges a generation can address.
const MaxHalfedges = 1 << 25

// MaxSharpnessLevel is the largest quantized sharpness a link can carry.
const MaxSharpnessLevel = linkSharpMask

// MaxValence is the largest valence a ValenceStartInfos word can carry.
const MaxValence = 0x7f

// FriendRecord holds the links of the four halfedges of one quad.
type FriendRecord [4]Link

// InteriorLink returns the link of a halfedge whose twin is twin, carrying
// quantized sharpness level (0 for unowned halfedges).
func InteriorLink(twin uint32, level uint32) Link {
	return Link(twin&linkIndexMask | (level&linkSharpMask)<<linkSharpShift)
}

// BoundaryLink returns the link of a boundary halfedge with boundary id.
func BoundaryLink(id uint32) Link {
	return Link(id&linkIndexMask | linkBoundaryBit)
}

// IsBoundary reports whether the halfedge has no twin.
func (l Link) IsBoundary() bool { return l&linkBoundaryBit != 0 }

// Twin returns the twin halfedge index. Only valid for interior links.
func (l Link) Twin() uint32 { return uint32(l) & linkIndexMask }

// BoundaryID returns the boundary edge id. Only valid for boundary links.
func (l Link) BoundaryID() uint32 { return uint32(l) & linkIndexMask }

// SharpnessLevel returns the quantized sharpness stored on the link.
func (l Link) SharpnessLevel() uint32 { return uint32(l) >> linkSharpShift & linkSharpMask }

func (l Link) String() string {
	if l.IsBoundary() {
		return fmt.Sprintf("boundary(%d)", l.BoundaryID())
	}
	return fmt.Sprintf("twin(%d,s=%d)", l.Twin(), l.SharpnessLevel())
}

// QuantizeSharpness converts a crease sharpness to quarter units, rounding
// to nearest and clamping to [0, MaxSharpnessLevel].
func QuantizeSharpness(s float32) uint32 {
	if !(s > 0) {
		return 0
	}
	q := s/sharpnessQuantum + 0.5
	if q >= MaxSharpnessLevel {
		return MaxSharpnessLevel
	}
	return uint32(q)
}

// decayLevel is the sharpness of the child edges of an edge with level q:
// one full unit less, never negative.
func decayLevel(q uint32) uint32 {
	if q > 4 {
		return q - 4
	}
	return 0
}

// PackValenceStart packs a vertex start halfedge and valence into a
// ValenceStartInfos word.
func PackValenceStart(start, valence uint32) uint32 {
	return start&linkIndexMask | (valence&MaxValence)<<linkSharpShift
}

// UnpackValenceStart splits a ValenceStartInfos word.
func UnpackValenceStart(w uint32) (start, valence uint32) {
	return w & linkIndexMask, w >> linkSharpShift & MaxValence
}
