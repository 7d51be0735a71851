package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flywave/go3d/vec3"
	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/gpucore"
)

// encodeGeometry packs g into a buffer image of layout l. Bytes between
// sections are zero.
func encodeGeometry(l gpucore.Layout, g *edgefriend.Geometry) ([]byte, error) {
	if err := l.Check(g.Shape()); err != nil {
		return nil, err
	}
	buf := make([]byte, l.Total)
	putPositions(section(buf, l, gpucore.SectionPositions), g.Positions)
	putWords(section(buf, l, gpucore.SectionIndices), g.Indices)
	putFriends(section(buf, l, gpucore.SectionFriends), g.FriendsAndSharpnesses)
	putWords(section(buf, l, gpucore.SectionValence), g.ValenceStartInfos)
	return buf, nil
}

// decodeGeometry unpacks a buffer image of layout l.
func decodeGeometry(l gpucore.Layout, buf []byte) (edgefriend.Geometry, error) {
	if uint64(len(buf)) < l.Total {
		return edgefriend.Geometry{}, fmt.Errorf("gpu: readback of %d bytes, layout needs %d", len(buf), l.Total)
	}
	return edgefriend.Geometry{
		Positions:             positions(section(buf, l, gpucore.SectionPositions)),
		Indices:               words(section(buf, l, gpucore.SectionIndices)),
		FriendsAndSharpnesses: friends(section(buf, l, gpucore.SectionFriends)),
		ValenceStartInfos:     words(section(buf, l, gpucore.SectionValence)),
	}, nil
}

func section(buf []byte, l gpucore.Layout, s gpucore.Section) []byte {
	off, size := l.Section(s)
	return buf[off : off+size]
}

// positions decodes tightly packed little-endian xyz float triples.
func positions(b []byte) []vec3.T {
	out := make([]vec3.T, len(b)/gpucore.PositionStride)
	for i := range out {
		p := b[i*gpucore.PositionStride:]
		out[i] = vec3.T{
			math.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
		}
	}
	return out
}

func putPositions(b []byte, ps []vec3.T) {
	for i := range ps {
		p := b[i*gpucore.PositionStride:]
		binary.LittleEndian.PutUint32(p[0:], math.Float32bits(ps[i][0]))
		binary.LittleEndian.PutUint32(p[4:], math.Float32bits(ps[i][1]))
		binary.LittleEndian.PutUint32(p[8:], math.Float32bits(ps[i][2]))
	}
}

func words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out
}

func putWords(b []byte, ws []uint32) {
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
}

func friends(b []byte) []edgefriend.FriendRecord {
	out := make([]edgefriend.FriendRecord, len(b)/gpucore.FriendStride)
	for i := range out {
		r := b[i*gpucore.FriendStride:]
		for k := range out[i] {
			out[i][k] = edgefriend.Link(binary.LittleEndian.Uint32(r[4*k:]))
		}
	}
	return out
}

func putFriends(b []byte, rs []edgefriend.FriendRecord) {
	for i := range rs {
		r := b[i*gpucore.FriendStride:]
		for k, l := range rs[i] {
			binary.LittleEndian.PutUint32(r[4*k:], uint32(l))
		}
	}
}
