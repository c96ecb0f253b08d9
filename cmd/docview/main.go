// Command docview lays out a sequence of page images, renders the tiles a
// viewport needs and writes them as PNG files together with a layout
// report.
//
// Usage:
//
//	docview [flags] page1.png page2.jpg ...
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/docview"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/decoder"
	"github.com/gogpu/docview/decoder/imagedoc"
	"github.com/gogpu/docview/geometry"
	"github.com/gogpu/docview/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliOptions struct {
	configPath string
	dir        string
	manifest   string
	out        string
	width      int
	height     int
	zoom       float64
	offsetX    float64
	offsetY    float64
	pages      []int
	password   string
	verbose    bool
	files      []string

	overrides config.Overlay
}

func parseFlags(errOut io.Writer, args []string) (cliOptions, int) {
	flagSet := flag.NewFlagSet("docview", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	var opts cliOptions
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "JSONC config file (default: "+config.FileName+" in the working directory)")
	flagSet.StringVar(&opts.dir, "dir", ".", "directory the page files are relative to")
	flagSet.StringVar(&opts.manifest, "manifest", "", "JSONC manifest with metadata, outline, links and notes")
	flagSet.StringVarP(&opts.out, "out", "o", "out", "output directory")
	flagSet.IntVar(&opts.width, "width", 1080, "viewport width in pixels")
	flagSet.IntVar(&opts.height, "height", 1920, "viewport height in pixels")
	flagSet.Float64Var(&opts.zoom, "zoom", 1, "zoom factor")
	flagSet.Float64Var(&opts.offsetX, "offset-x", 0, "horizontal scroll position")
	flagSet.Float64Var(&opts.offsetY, "offset-y", 0, "vertical scroll position")
	flagSet.IntSliceVar(&opts.pages, "pages", nil, "user page sequence, e.g. 0,2,2,1")
	flagSet.StringVar(&opts.password, "password", "", "document password")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")

	fit := flagSet.String("fit", "width", "fit policy: width, height or both")
	dual := flagSet.Bool("dual", false, "show two pages side by side")
	horizontal := flagSet.Bool("horizontal", false, "scroll horizontally")
	spacing := flagSet.Float64("spacing", 0, "gap between pages in pixels")
	autoSpacing := flagSet.Bool("auto-spacing", false, "pad pages to fill the viewport")
	quality := flagSet.Bool("quality", false, "render ARGB8888 tiles with a high quality filter")
	annotations := flagSet.Bool("annotations", false, "render manifest notes")
	partSize := flagSet.Int("part-size", docview.DefaultPartSize, "largest tile edge in pixels")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cliOptions{}, -1
		}
		return cliOptions{}, 2
	}

	opts.files = flagSet.Args()
	if len(opts.files) == 0 {
		fmt.Fprintln(errOut, "error: no page files given")
		return cliOptions{}, 2
	}

	o := &opts.overrides
	if flagSet.Changed("fit") {
		o.FitPolicy = fit
	}
	if flagSet.Changed("dual") {
		o.DualPage = dual
	}
	if flagSet.Changed("horizontal") {
		vertical := !*horizontal
		o.Vertical = &vertical
	}
	if flagSet.Changed("spacing") {
		o.Spacing = spacing
	}
	if flagSet.Changed("auto-spacing") {
		o.AutoSpacing = autoSpacing
	}
	if flagSet.Changed("quality") {
		o.BestQuality = quality
	}
	if flagSet.Changed("annotations") {
		o.Annotations = annotations
	}
	if flagSet.Changed("part-size") {
		o.PartSize = partSize
	}
	return opts, 0
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	opts, code := parseFlags(errOut, args)
	if code == -1 {
		return 0
	}
	if code != 0 {
		return code
	}

	if opts.verbose {
		docview.SetLogger(slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer docview.SetLogger(nil)
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	cfg, err := config.Load(config.LoadInput{Path: opts.configPath, WorkDir: wd, Overrides: opts.overrides})
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if err := render(ctx, opts, cfg, out); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func render(ctx context.Context, opts cliOptions, cfg config.Config, out io.Writer) error {
	for _, f := range append([]string{opts.manifest}, opts.files...) {
		if f != "" && !fs.ValidPath(f) {
			return fmt.Errorf("%q must be a slash-separated path inside --dir", f)
		}
	}
	src := decoder.FSSource{FS: os.DirFS(opts.dir), Paths: opts.files, Manifest: opts.manifest}

	var decOpts []imagedoc.Option
	if cfg.BestQuality {
		decOpts = append(decOpts, imagedoc.WithInterpolator(xdraw.CatmullRom))
	}

	viewOpts := append(cfg.Options(), docview.WithPassword(opts.password))
	if len(opts.pages) > 0 {
		viewOpts = append(viewOpts, docview.WithPages(opts.pages...))
	}

	viewport := geometry.Size{Width: opts.width, Height: opts.height}
	s := docview.Open(ctx, imagedoc.New(decOpts...), src, viewport, nil, viewOpts...)
	doc, err := s.Wait(ctx)
	if err != nil {
		s.Cancel()
		return err
	}

	v := docview.NewViewer(doc, viewOpts...)
	defer v.Close()

	zoom := v.ClampZoom(opts.zoom)
	n := v.LoadViewport(docview.Viewport{
		OffsetX: opts.offsetX,
		OffsetY: opts.offsetY,
		Width:   float64(opts.width),
		Height:  float64(opts.height),
		Zoom:    zoom,
	})
	if err := v.Flush(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}
	rep := newReport(doc, cfg, zoom)
	tiles, thumbs := v.Tiles(), v.Thumbnails()
	defer cache.ReleaseSnapshot(thumbs)
	defer cache.ReleaseSnapshot(tiles)
	for i, t := range tiles {
		entry, err := writeTile(opts.out, fmt.Sprintf("tile-%d-%03d.png", t.Page, i), t)
		if err != nil {
			return err
		}
		rep.Tiles = append(rep.Tiles, entry)
	}
	for _, t := range thumbs {
		entry, err := writeTile(opts.out, fmt.Sprintf("thumb-%d.png", t.Page), t)
		if err != nil {
			return err
		}
		rep.Thumbnails = append(rep.Thumbnails, entry)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(filepath.Join(opts.out, "layout.json"), bytes.NewReader(append(data, '\n'))); err != nil {
		return err
	}

	st := v.Pipeline().Stats()
	fmt.Fprintf(out, "%s: %d pages, %d tasks, %d tiles, %d thumbnails, %d dropped\n",
		doc.Name(), doc.PageCount(), n, len(rep.Tiles), len(rep.Thumbnails), st.Dropped)
	return nil
}

func writeTile(dir, name string, t cache.Tile) (tileEntry, error) {
	img := t.Bitmap.RGBA()
	if img == nil {
		return tileEntry{}, fmt.Errorf("tile %s was freed before it could be written", name)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return tileEntry{}, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := atomic.WriteFile(filepath.Join(dir, name), &buf); err != nil {
		return tileEntry{}, fmt.Errorf("write %s: %w", name, err)
	}
	return tileEntry{
		File:   name,
		Page:   t.Page,
		Region: [4]float64{t.Region.Left, t.Region.Top, t.Region.Right, t.Region.Bottom},
		Width:  t.Bitmap.Width(),
		Height: t.Bitmap.Height(),
		Order:  t.CacheOrder,
		Format: t.Bitmap.Format().String(),
	}, nil
}
