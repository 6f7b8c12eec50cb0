package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/features"
	"github.com/kozaktomas/image-search/internal/pixelsource"
)

// Record names one image to ingest. An empty DominantColor is estimated from
// the pixels.
type Record struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	DominantColor string `json:"dominant_color,omitempty"`
}

// Phase names a step of building a generation.
type Phase string

const (
	PhaseDecode    Phase = "decode"
	PhaseNormalize Phase = "normalize"
	PhaseIndex     Phase = "index"
	PhaseDone      Phase = "done"
)

// Progress is reported while a generation is built.
type Progress struct {
	Phase   Phase  `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	ID      string `json:"id,omitempty"`
}

// IngestOptions controls a build.
type IngestOptions struct {
	Workers        int           // parallel decodes, default constants.WorkerPoolSize
	DecodeTimeout  time.Duration // per image, <= 0 means none
	AllowPartial   bool          // skip images that fail instead of failing the build
	StrictCapacity bool          // fail when records exceed the corpus bound
	// OnProgress is called serially; it must not block for long.
	OnProgress func(Progress)
}

// Skipped records an image left out of a partial build.
type Skipped struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// IngestReport summarizes a published generation.
type IngestReport struct {
	Generation uint64        `json:"generation"`
	Items      int           `json:"items"`
	Skipped    []Skipped     `json:"skipped"`
	Overflow   int           `json:"overflow"` // records beyond the corpus bound
	Duration   time.Duration `json:"duration"`

	// Capacity names the first dropped record when Overflow > 0.
	Capacity *catalog.Error `json:"capacity_error,omitempty"`
}

type extracted struct {
	item *catalog.Item
	err  error
}

// Ingest decodes records through the pixel source, builds a new generation
// and publishes it. Items keep record order regardless of decode order. On
// failure the previous generation stays current.
func (e *Engine) Ingest(ctx context.Context, records []Record, opts IngestOptions) (*IngestReport, error) {
	if e.source == nil {
		return nil, errors.New("engine has no pixel source")
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	report := &IngestReport{Skipped: []Skipped{}}

	if len(records) > e.opts.MaxSize {
		capErr := catalog.NewError(catalog.ErrCapacityExceeded, e.opts.MaxSize, records[e.opts.MaxSize].ID,
			"corpus holds at most %d items, got %d records", e.opts.MaxSize, len(records))
		if opts.StrictCapacity {
			return nil, capErr
		}
		report.Overflow = len(records) - e.opts.MaxSize
		report.Capacity = capErr
		log.Printf("Ingest: %v; %d records dropped", capErr, report.Overflow)
		records = records[:e.opts.MaxSize]
	}

	corpus, err := catalog.NewCorpus(e.opts)
	if err != nil {
		return nil, err
	}
	if err := corpus.Expect(len(records)); err != nil {
		return nil, err
	}

	progress := newProgressReporter(opts.OnProgress)
	results, err := e.decodeAll(ctx, records, opts, progress)
	if err != nil {
		return nil, err
	}

	for i, res := range results {
		rec := records[i]
		if res.err == nil {
			res.err = corpus.Add(res.item)
		}
		if res.err == nil {
			continue
		}
		if !opts.AllowPartial {
			return nil, itemFailure(i, rec.ID, res.err)
		}
		log.Printf("Ingest: skipping %s: %v", sanitizeForLog(rec.ID), res.err)
		report.Skipped = append(report.Skipped, Skipped{ID: rec.ID, Reason: res.err.Error()})
		if err := corpus.Expect(corpus.Len() + corpus.Pending() - 1); err != nil {
			return nil, err
		}
	}

	idx, err := e.build(corpus, progress)
	if err != nil {
		return nil, err
	}

	report.Generation = e.publish(idx)
	report.Items = idx.Len()
	report.Duration = time.Since(start)
	progress.report(Progress{Phase: PhaseDone, Current: idx.Len(), Total: idx.Len()})
	return report, nil
}

// decodeAll extracts every record with a bounded worker pool. Without
// AllowPartial the first failure cancels the remaining decodes and is
// returned as the build error.
func (e *Engine) decodeAll(ctx context.Context, records []Record, opts IngestOptions, progress *progressReporter) ([]extracted, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}

	decodeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]extracted, len(records))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var completed atomic.Int64
	var failOnce sync.Once
	var failure error

	for i, rec := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-decodeCtx.Done():
				results[i].err = decodeCtx.Err()
				return
			}
			defer func() { <-sem }()

			item, err := e.extract(decodeCtx, rec, opts.DecodeTimeout)
			results[i] = extracted{item: item, err: err}
			if err != nil && !opts.AllowPartial && decodeCtx.Err() == nil {
				failOnce.Do(func() {
					failure = itemFailure(i, rec.ID, err)
					cancel()
				})
			}

			n := completed.Add(1)
			progress.report(Progress{Phase: PhaseDecode, Current: int(n), Total: len(records), ID: rec.ID})
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return results, nil
}

// build normalizes a fully ingested corpus and derives its index.
func (e *Engine) build(corpus *catalog.Corpus, progress *progressReporter) (*catalog.Index, error) {
	progress.report(Progress{Phase: PhaseNormalize, Current: corpus.Len(), Total: corpus.Len()})
	if err := catalog.Normalize(corpus); err != nil {
		return nil, err
	}
	progress.report(Progress{Phase: PhaseIndex, Current: corpus.Len(), Total: corpus.Len()})
	return catalog.NewIndex(corpus, e.named)
}

func (e *Engine) extract(ctx context.Context, rec Record, timeout time.Duration) (*catalog.Item, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	px, err := fetch(ctx, e.source, rec.ID)
	if err != nil {
		return nil, err
	}
	return e.Extract(rec, px)
}

// fetch returns as soon as ctx is done even if the source ignores it.
func fetch(ctx context.Context, src pixelsource.Source, id string) (features.Pixels, error) {
	type result struct {
		px  features.Pixels
		err error
	}
	ch := make(chan result, 1)
	go func() {
		px, err := src.Pixels(ctx, id)
		ch <- result{px, err}
	}()

	select {
	case r := <-ch:
		return r.px, r.err
	case <-ctx.Done():
		return features.Pixels{}, ctx.Err()
	}
}

// Extract computes the features of one record from its decoded pixels.
func (e *Engine) Extract(rec Record, px features.Pixels) (*catalog.Item, error) {
	moments, err := features.Moments(px, e.opts.HBlocks, e.opts.VBlocks)
	if err != nil {
		return nil, err
	}

	var dominant features.RGB
	if rec.DominantColor != "" {
		if dominant, err = features.ParseHex(rec.DominantColor); err != nil {
			return nil, fmt.Errorf("dominant color: %w", err)
		}
	} else if dominant, err = pixelsource.DominantColor(px); err != nil {
		return nil, err
	}

	return &catalog.Item{
		ID:            rec.ID,
		Category:      rec.Category,
		DominantColor: dominant,
		Histogram:     e.palette.Histogram(px),
		Moments:       moments,
	}, nil
}

// itemFailure names the record that broke a build. Pipeline errors already
// carry their kind; anything else means the item never arrived.
func itemFailure(index int, id string, err error) error {
	var catErr *catalog.Error
	if errors.As(err, &catErr) {
		return err
	}
	return fmt.Errorf("%w: %w", catalog.NewError(catalog.ErrIncompleteCorpus, index, id, "image not ingested"), err)
}

type progressReporter struct {
	mu sync.Mutex
	fn func(Progress)
}

func newProgressReporter(fn func(Progress)) *progressReporter {
	return &progressReporter{fn: fn}
}

func (p *progressReporter) report(pr Progress) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn(pr)
}
