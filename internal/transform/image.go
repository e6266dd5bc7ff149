package transform

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"os/exec"
	"path"
	"runtime"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
)

// DefaultJPEGQuality is the re-encoding quality when none is configured.
const DefaultJPEGQuality = 85

// ImageCompressOptions configures image compression.
type ImageCompressOptions struct {
	JPEGQuality int
	// Commands maps a lower-case extension (".png") to an external
	// compressor invoked with the image on stdin, expected on stdout.
	Commands map[string][]string
	// Workers bounds concurrent compressions; zero means GOMAXPROCS.
	Workers int
}

type imageCompress struct {
	quality  int
	commands map[string][]string
	workers  int
	m        *minify.M
}

// ImageCompress shrinks raster images and SVG files. A result that is not
// smaller than the input is discarded in favour of the original bytes.
func ImageCompress(opts ImageCompressOptions) (Unit, error) {
	q := opts.JPEGQuality
	if q == 0 {
		q = DefaultJPEGQuality
	}
	if q < 1 || q > 100 {
		return nil, fmt.Errorf("jpeg quality must be within 1..100, got %d", q)
	}
	cmds := make(map[string][]string, len(opts.Commands))
	for ext, argv := range opts.Commands {
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty compressor command for %s", ext)
		}
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cmds[ext] = argv
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return &imageCompress{quality: q, commands: cmds, workers: workers, m: m}, nil
}

func (c *imageCompress) Name() string { return "image-compress" }

func (c *imageCompress) Apply(ctx context.Context, in asset.Set) (asset.Set, error) {
	out := make(asset.Set, len(in))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, a := range in {
		g.Go(func() error {
			res, err := c.compress(gctx, a)
			if err != nil {
				return err
			}
			if len(res) >= len(a.Contents) {
				res = a.Contents
			}
			out[i] = a.WithContents(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *imageCompress) compress(ctx context.Context, a asset.Asset) ([]byte, error) {
	ext := strings.ToLower(path.Ext(a.Path))
	if argv, ok := c.commands[ext]; ok {
		return c.external(ctx, a, argv)
	}
	switch ext {
	case ".png":
		img, err := png.Decode(bytes.NewReader(a.Contents))
		if err != nil {
			return nil, &Error{Unit: c.Name(), Asset: a.Source, Message: "decode png: " + err.Error(), Syntax: true, Err: err}
		}
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, &Error{Unit: c.Name(), Asset: a.Source, Err: err}
		}
		return buf.Bytes(), nil
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(bytes.NewReader(a.Contents))
		if err != nil {
			return nil, &Error{Unit: c.Name(), Asset: a.Source, Message: "decode jpeg: " + err.Error(), Syntax: true, Err: err}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
			return nil, &Error{Unit: c.Name(), Asset: a.Source, Err: err}
		}
		return buf.Bytes(), nil
	case ".svg":
		res, err := c.m.Bytes("image/svg+xml", a.Contents)
		if err != nil {
			return nil, minifyError(c.Name(), a, err)
		}
		return res, nil
	default:
		return a.Contents, nil
	}
}

func (c *imageCompress) external(ctx context.Context, a asset.Asset, argv []string) ([]byte, error) {
	// #nosec G204 -- compressor commands come from the project configuration
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(a.Contents)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, &Error{Unit: c.Name(), Asset: a.Source, Message: argv[0] + ": " + msg, Err: err}
	}
	if stdout.Len() == 0 {
		return a.Contents, nil
	}
	return stdout.Bytes(), nil
}
