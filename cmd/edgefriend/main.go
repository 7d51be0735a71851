// Command edgefriend refines a mesh with iterative Catmull-Clark
// subdivision on a GPU and optionally checks the result against the CPU
// reference.
//
// Usage:
//
//	edgefriend [flags] input.obj
//
// The result is written as output_<N>iter.<ext>. With -check the CPU
// reference is written as output_cpp_<N>iter.<ext> and both are compared.
//
// Exit codes: 0 on success (or a passing check), 2 when the check finds a
// mismatch, 1 on any other error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/gogpu/edgefriend"
	"github.com/gogpu/edgefriend/backend"
	_ "github.com/gogpu/edgefriend/backend/native"
	_ "github.com/gogpu/edgefriend/backend/software"
	"github.com/gogpu/edgefriend/gpucore"
	"github.com/gogpu/edgefriend/internal/gpu"
	"github.com/gogpu/edgefriend/meshio"
)

const (
	exitOK       = 0
	exitError    = 1
	exitMismatch = 2
)

// errMismatch is returned by execute when the check mode found a
// difference. It maps to exit code 2.
var errMismatch = errors.New("check: results differ")

type options struct {
	check        bool
	eps          float64
	iterations   int
	sharpness    float64
	backend      string
	adapter      int
	listAdapters bool
	format       string
	outDir       string
	verbose      bool
	input        string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "edgefriend:", err)
		return exitError
	}
	setupLogging(stderr, opts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = execute(ctx, opts, stdout)
	if err != nil && !errors.Is(err, errMismatch) {
		fmt.Fprintln(stderr, "edgefriend:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errMismatch):
		return exitMismatch
	default:
		return exitError
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("edgefriend", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.check, "check", false, "also run the CPU reference and compare")
	fs.Float64Var(&opts.eps, "eps", 2e-5, "position tolerance for -check, must be > 0")
	fs.IntVar(&opts.iterations, "iters", 1, "number of refinement iterations")
	fs.Float64Var(&opts.sharpness, "sharpness", 1, "crease sharpness factor")
	fs.StringVar(&opts.backend, "backend", "", "compute backend: native or software (default: best available)")
	fs.IntVar(&opts.adapter, "adapter", -1, "adapter index, -1 picks automatically")
	fs.BoolVar(&opts.listAdapters, "list-adapters", false, "list adapters and exit")
	fs.StringVar(&opts.format, "format", "", "output format: obj, gltf or glb (default: same as input)")
	fs.StringVar(&opts.outDir, "out", ".", "output directory")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: edgefriend [flags] input.{obj,gltf,glb}")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.listAdapters {
		return opts, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected one input file, got %d arguments", fs.NArg())
	}
	opts.input = fs.Arg(0)
	return opts, nil
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	edgefriend.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// execute runs one invocation. Nothing is written before every result
// that will be written has been computed.
func execute(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.listAdapters {
		return listAdapters(stdout, opts.backend)
	}

	eps := float32(opts.eps)
	if err := edgefriend.ValidateEpsilon(eps); err != nil {
		return err
	}
	if opts.iterations < 1 {
		return fmt.Errorf("%w: -iters %d, want at least 1", edgefriend.ErrInvalidIterations, opts.iterations)
	}
	format, err := outputFormat(opts)
	if err != nil {
		return err
	}
	sharpness := float32(opts.sharpness)

	raw, err := meshio.LoadRawMesh(opts.input)
	if err != nil {
		return err
	}
	gen0, err := edgefriend.FromRawMesh(raw, sharpness)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.input, err)
	}

	adapter, err := backend.Open(opts.backend, backend.Options{AdapterIndex: opts.adapter})
	if err != nil {
		return err
	}
	defer adapter.Close()
	info := adapter.Info()
	edgefriend.Logger().Info("adapter selected",
		"backend", info.Backend, "name", info.Name, "type", info.DeviceType, "index", info.Index)

	engine, err := gpu.Init(adapter, gpu.WithSharpnessFactor(sharpness))
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Run(ctx, gen0, opts.iterations)
	if err != nil {
		return err
	}

	var reference edgefriend.Geometry
	if opts.check {
		if reference, err = edgefriend.SubdivideN(gen0, opts.iterations, sharpness); err != nil {
			return fmt.Errorf("cpu reference: %w", err)
		}
	}

	outPath := filepath.Join(opts.outDir, meshio.OutputName(opts.iterations, format))
	if err := meshio.Write(outPath, format, &result); err != nil {
		return err
	}
	summary := []stage{
		{"input", len(raw.Positions), raw.FaceCount()},
		{"generation 0", gen0.VertexCount(), gen0.FaceCount()},
		{fmt.Sprintf("generation %d", opts.iterations), result.VertexCount(), result.FaceCount()},
	}
	if err := printSummary(stdout, info, summary, outPath); err != nil {
		return err
	}
	if !opts.check {
		return nil
	}

	refPath := filepath.Join(opts.outDir, meshio.ReferenceOutputName(opts.iterations, format))
	if err := meshio.Write(refPath, format, &reference); err != nil {
		return err
	}
	mem, err := edgefriend.Compare(result, reference, eps)
	if err != nil {
		return err
	}
	files, err := meshio.CompareFiles(outPath, refPath, eps)
	if err != nil {
		return err
	}
	if !printVerdict(stdout, mem, files, eps) {
		return errMismatch
	}
	return nil
}

func outputFormat(opts options) (meshio.Format, error) {
	if opts.format != "" {
		return meshio.ParseFormat(opts.format)
	}
	return meshio.FormatOf(opts.input)
}

type stage struct {
	name            string
	vertices, faces int
}

func printSummary(w io.Writer, info gpucore.AdapterInfo, stages []stage, out string) error {
	fmt.Fprintf(w, "adapter: %s (%s, %s)\n", info.Name, info.Backend, info.DeviceType)
	table := tablewriter.NewWriter(w)
	if err := table.Append([]string{"Stage", "Vertices", "Faces"}); err != nil {
		return err
	}
	for _, s := range stages {
		if err := table.Append([]string{s.name, strconv.Itoa(s.vertices), strconv.Itoa(s.faces)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", out)
	return nil
}

// printVerdict reports the in-memory and the file comparison and returns
// whether both matched.
func printVerdict(w io.Writer, mem, files edgefriend.Report, eps float32) bool {
	pass := color.New(color.FgHiGreen, color.Bold)
	fail := color.New(color.FgHiRed, color.Bold)

	ok := true
	for _, c := range []struct {
		what string
		r    edgefriend.Report
	}{{"memory", mem}, {"files", files}} {
		if c.r.Match {
			pass.Fprintf(w, "[Check] %s: match (eps %g)\n", c.what, eps)
			continue
		}
		ok = false
		fail.Fprintf(w, "[Check] %s: %s\n", c.what, c.r)
	}
	return ok
}

func listAdapters(w io.Writer, only string) error {
	names := backend.Available()
	if only != "" {
		if !backend.IsRegistered(only) {
			return fmt.Errorf("%w: %q", backend.ErrBackendNotAvailable, only)
		}
		names = []string{only}
	}

	table := tablewriter.NewWriter(w)
	if err := table.Append([]string{"Backend", "Index", "Name", "Type"}); err != nil {
		return err
	}
	for _, name := range names {
		infos, err := backend.ListAdapters(name)
		if err != nil {
			edgefriend.Logger().Warn("cannot list adapters", "backend", name, "err", err)
			continue
		}
		for _, info := range infos {
			if err := table.Append([]string{name, strconv.Itoa(info.Index), info.Name, info.DeviceType}); err != nil {
				return err
			}
		}
	}
	return table.Render()
}
