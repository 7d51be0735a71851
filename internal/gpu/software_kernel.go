package gpu

import (
	"fmt"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/backend/software"
	"github.com/gogpu/edgefriend/gpucore"
	"github.com/gogpu/edgefriend/internal/parallel"
)

// Binding numbers of bind group 0, shared with shaders/refine.wgsl.
const (
	bindingParams uint32 = iota
	bindingInPositions
	bindingInIndices
	bindingInFriends
	bindingInValence
	bindingOutPositions
	bindingOutIndices
	bindingOutFriends
	bindingOutValence

	bindingCount
)

func init() {
	software.RegisterKernel(EntryPoint, refineKernel)
}

// refineKernel is the CPU mirror of shaders/refine.wgsl. Workgroups run on
// the shared worker pool; every lane writes only its own outputs.
func refineKernel(groups [3]uint32, b software.Bindings) error {
	p, err := gpucore.DecodeParams(b[bindingParams])
	if err != nil {
		return err
	}

	in := edgefriend.Geometry{
		Positions:             positions(b[bindingInPositions]),
		Indices:               words(b[bindingInIndices]),
		FriendsAndSharpnesses: friends(b[bindingInFriends]),
		ValenceStartInfos:     words(b[bindingInValence]),
	}
	if in.VertexCount() < int(p.Vertices) || in.FaceCount() < int(p.Faces) || len(in.Indices) < 4*int(p.Faces) {
		return fmt.Errorf("gpu: input bindings hold V=%d F=%d, dispatch needs V=%d F=%d",
			in.VertexCount(), in.FaceCount(), p.Vertices, p.Faces)
	}
	in.Positions = in.Positions[:p.Vertices]
	in.ValenceStartInfos = in.ValenceStartInfos[:p.Vertices]
	in.FriendsAndSharpnesses = in.FriendsAndSharpnesses[:p.Faces]
	in.Indices = in.Indices[:4*p.Faces]

	shape := in.Shape()
	next, err := shape.Next()
	if err != nil {
		return err
	}
	out := edgefriend.Geometry{
		Positions:             positions(b[bindingOutPositions]),
		Indices:               words(b[bindingOutIndices]),
		FriendsAndSharpnesses: friends(b[bindingOutFriends]),
		ValenceStartInfos:     words(b[bindingOutValence]),
	}
	if out.VertexCount() < int(next.Vertices) || len(out.ValenceStartInfos) < int(next.Vertices) ||
		out.FaceCount() < int(next.Faces) || len(out.Indices) < 4*int(next.Faces) {
		return fmt.Errorf("gpu: output bindings too small for %v", next)
	}

	// Workgroup g covers lanes [32g, 32g+32) whatever the dispatch shape,
	// the numbering the WGSL entry point derives from num_workgroups.
	parallel.Default().ForEachGroup(groups[0]*groups[1]*groups[2], func(g uint32) {
		first := g * edgefriend.ThreadsPerGroup
		for t := first; t < first+edgefriend.ThreadsPerGroup; t++ {
			edgefriend.Lane(p, &in, &out, t)
		}
	})

	putPositions(b[bindingOutPositions], out.Positions)
	putWords(b[bindingOutIndices], out.Indices)
	putFriends(b[bindingOutFriends], out.FriendsAndSharpnesses)
	putWords(b[bindingOutValence], out.ValenceStartInfos)
	return nil
}
