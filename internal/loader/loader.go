// Package loader fetches a decoded-record model file and streams it into a
// model graph, reporting progress the way the viewer front-end expects:
// idle, byte progress while fetching, one event per mesh while loading,
// then error (on failure) and done.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
	"golang.org/x/time/rate"
)

// Callbacks receive load notifications. Any field may be nil.
type Callbacks struct {
	OnProgress func(models.ProgressEvent)
	// OnError receives the error that stopped the load. The partial model
	// is still returned.
	OnError func(error)
}

// Options tune a Loader.
type Options struct {
	// Registry detects the record format. Defaults to the global registry.
	Registry *parser.Registry
	// Intern deduplicates property strings across loads.
	Intern *parser.StringIntern
	// ProgressRate limits intermediate progress events per second. Zero
	// means unlimited. Step boundaries are always reported.
	ProgressRate rate.Limit
	// MaxBytes caps the size of a fetched model file. Zero means
	// DefaultMaxBytes.
	MaxBytes int64
}

// Request describes one load.
type Request struct {
	Location string
	// LoadProperties pulls property records per item. It is false when the
	// caller restores item attributes from a snapshot.
	LoadProperties bool
	// Tag prefixes log lines, usually a session id.
	Tag string
}

// Result summarizes a load.
type Result struct {
	Bytes    int64
	Meshes   int
	Schema   string
	Duration time.Duration
}

// Loader builds models from record files.
type Loader struct {
	fetcher Fetcher
	opts    Options
}

// New creates a loader reading through f.
func New(f Fetcher, opts Options) *Loader {
	if opts.Registry == nil {
		opts.Registry = parser.GetGlobalRegistry()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Loader{fetcher: f, opts: opts}
}

// Load fetches and streams req.Location into a new model. On failure the
// partially built model is returned with the error; the caller owns it in
// both cases.
func (l *Loader) Load(ctx context.Context, req Request, cb Callbacks) (*graph.Model, Result, error) {
	start := time.Now()
	model := graph.New()
	p := newProgress(cb.OnProgress, l.opts.ProgressRate)

	res, err := l.load(ctx, req, model, p)
	res.Duration = time.Since(start)
	if err != nil {
		fmt.Printf("[Loader %s] Error loading %s: %v\n", shortID(req.Tag), req.Location, err)
		p.emit(models.ProgressEvent{Type: models.ProgressTypeError, Step: models.LoadStepIdle})
		if cb.OnError != nil {
			cb.OnError(err)
		}
	} else {
		fmt.Printf("[Loader %s] Loaded %d meshes (%d items) in %v\n", shortID(req.Tag), res.Meshes, model.Len(), res.Duration)
	}
	p.emit(models.ProgressEvent{Type: models.ProgressTypeDone, Step: models.LoadStepIdle})
	return model, res, err
}

func (l *Loader) load(ctx context.Context, req Request, model *graph.Model, p *progress) (Result, error) {
	var res Result
	p.emit(models.ProgressEvent{Type: models.ProgressTypeProgress, Step: models.LoadStepIdle})

	data, err := l.fetcher.Fetch(ctx, req.Location, l.opts.MaxBytes, func(loaded, total int64) {
		p.intermediate(loaded, total, models.ProgressEvent{
			Type:             models.ProgressTypeProgress,
			Step:             models.LoadStepFetching,
			Loaded:           loaded,
			Total:            total,
			LengthComputable: total > 0,
		})
	})
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", req.Location, err)
	}
	res.Bytes = int64(len(data))
	p.emit(models.ProgressEvent{Type: models.ProgressTypeDone, Step: models.LoadStepFetching, Loaded: res.Bytes, Total: res.Bytes})

	src, err := l.opts.Registry.Open(bytes.NewReader(data), parser.ReaderOptions{
		SkipProperties: !req.LoadProperties,
		Intern:         l.opts.Intern,
	})
	if err != nil {
		return res, fmt.Errorf("open model: %w", err)
	}
	defer src.Close()
	res.Schema = src.Header().Schema

	total := int64(src.MeshCount())
	for index := int64(1); ; index++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		h, err := model.AddRecord(rec)
		if err != nil {
			return res, err
		}
		if req.LoadProperties {
			if props, ok := src.Properties(rec.ExpressID); ok {
				model.SetProperties(h, props)
			}
		}
		res.Meshes++
		p.intermediate(index, total, models.ProgressEvent{
			Type:             models.ProgressTypeProgress,
			Step:             models.LoadStepLoading,
			Loaded:           index,
			Total:            total,
			LengthComputable: true,
		})
	}
	return res, nil
}

// progress forwards events, dropping intermediate ones beyond the rate limit.
type progress struct {
	fn      func(models.ProgressEvent)
	limiter *rate.Limiter
}

func newProgress(fn func(models.ProgressEvent), limit rate.Limit) *progress {
	p := &progress{fn: fn}
	if limit > 0 {
		p.limiter = rate.NewLimiter(limit, 1)
	}
	return p
}

func (p *progress) emit(ev models.ProgressEvent) {
	if p.fn != nil {
		p.fn(ev)
	}
}

// intermediate reports ev unless it is throttled. The final event of a
// step, where loaded reaches total, always passes.
func (p *progress) intermediate(loaded, total int64, ev models.ProgressEvent) {
	if p.limiter != nil && loaded != total && !p.limiter.Allow() {
		return
	}
	p.emit(ev)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
