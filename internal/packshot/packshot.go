// Package packshot sequences background removal and frame compositing over a
// batch of product photos, deriving canonical EAN-based output names.
package packshot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"packshot-studio/internal/frame"
	"packshot-studio/internal/removebg"
)

type Item struct {
	Filename string
	Data     []byte
}

// Processed is one batch result. A non-empty Error means this item could not
// be fully processed and Data holds the original input bytes; callers should
// surface that distinctly, not as a silent success.
type Processed struct {
	Filename string
	Data     []byte
	Error    string
}

type ProcessorOptions struct {
	Remover *removebg.Client
	Logger  *slog.Logger
}

type Processor struct {
	remover *removebg.Client
	logger  *slog.Logger
}

type Options struct {
	RemoveBackground bool
	FrameSize        int
	Concurrency      int
}

func New(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Processor{
		remover: opts.Remover,
		logger:  logger,
	}
}

// ProcessAll runs every item through the pipeline independently. The result
// slice always has one entry per input, in input order; a failing item is
// recorded and never aborts its siblings. Concurrency above 1 processes
// items in a bounded pool, still collecting results by input position.
func (p *Processor) ProcessAll(ctx context.Context, items []Item, opts Options) []Processed {
	frameSize := opts.FrameSize
	if frameSize <= 0 {
		frameSize = frame.DefaultSize
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Processed, len(items))

	eg := &errgroup.Group{}
	eg.SetLimit(concurrency)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-batch: stop launching, keep the length contract.
			results[i] = Processed{Filename: item.Filename, Data: item.Data, Error: err.Error()}
			continue
		}

		i, item := i, item
		eg.Go(func() error {
			results[i] = p.processOne(ctx, item, opts.RemoveBackground, frameSize)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (p *Processor) processOne(ctx context.Context, item Item, removeBackground bool, frameSize int) Processed {
	data := item.Data

	if removeBackground && p.remover != nil && p.remover.Enabled() {
		result := p.remover.Remove(ctx, data, item.Filename)
		data = result.Image
	}

	framed, err := frame.FitToFrame(data, frameSize)
	if err != nil {
		p.logger.Error("packshot failed", "file", item.Filename, "err", err)
		return Processed{Filename: item.Filename, Data: item.Data, Error: err.Error()}
	}

	return Processed{Filename: OutputName(item.Filename), Data: framed}
}

var (
	leadingDigits = regexp.MustCompile(`^(\d+)`)
	dashSequence  = regexp.MustCompile(`-(\d+)`)
	parenSequence = regexp.MustCompile(`\((\d+)\)`)
)

// OutputName derives the canonical packshot filename: the leading digit run
// of the base name, plus a sequence discriminator found as "-N" or "(N)"
// anywhere in it (dash form strictly first), always with a .png extension.
// Names without a leading digit run keep their base name.
func OutputName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	m := leadingDigits.FindStringSubmatch(base)
	if m == nil {
		return base + ".png"
	}
	code := m[1]

	if seq := dashSequence.FindStringSubmatch(base); seq != nil {
		return code + "-" + seq[1] + ".png"
	}
	if seq := parenSequence.FindStringSubmatch(base); seq != nil {
		return code + "-" + seq[1] + ".png"
	}
	return code + ".png"
}
