package gpucore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/edgefriend"
)

// ParamsSize is the size of the constant record shared by all lanes of
// one dispatch: {faces u32, vertices u32, sharpness_factor f32, pad u32}.
const ParamsSize = 16

// EncodeParams serializes the dispatch constants in the layout the
// kernel's uniform block expects.
func EncodeParams(p edgefriend.Params) []byte {
	buf := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.Faces)
	binary.LittleEndian.PutUint32(buf[4:], p.Vertices)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.SharpnessFactor))
	return buf
}

// DecodeParams is the inverse of EncodeParams.
func DecodeParams(buf []byte) (edgefriend.Params, error) {
	if len(buf) < ParamsSize {
		return edgefriend.Params{}, fmt.Errorf("gpucore: constant record has %d bytes, want %d", len(buf), ParamsSize)
	}
	return edgefriend.Params{
		Faces:           binary.LittleEndian.Uint32(buf[0:]),
		Vertices:        binary.LittleEndian.Uint32(buf[4:]),
		SharpnessFactor: math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
	}, nil
}
