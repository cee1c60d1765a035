package exposure

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sunfield/sunfield/internal/metrics"
	"github.com/sunfield/sunfield/internal/shade"
)

// Engine computes exposure grids with a fixed-size worker pool and keeps
// the most recent result for reuse. Safe for concurrent use; an in-flight
// computation can be abandoned via its context with nothing to roll back.
type Engine struct {
	workers int
	logger  *slog.Logger
	cached  atomic.Pointer[cachedGrid]
}

// NewEngine creates an exposure engine with the given worker count.
func NewEngine(workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	metrics.SetEngineWorkers(workers)
	return &Engine{workers: workers, logger: logger}
}

// cellJob is a unit of work for the worker pool.
type cellJob struct {
	row, col int
}

// cellResult is the output of a single cell integration.
type cellResult struct {
	row, col int
	hours    float64
	err      error
}

// Grid computes (or returns the cached) sun-hours field for the request.
// Cost is O(cells × samples × obstacles); the whole field is recomputed
// whenever any input changes.
func (e *Engine) Grid(ctx context.Context, req Request) (*Grid, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := fingerprintOf(req)
	if g := e.lookup(key); g != nil {
		metrics.IncGridCacheHit()
		return g, nil
	}
	metrics.IncGridCacheMiss()

	start := time.Now()
	grid, err := e.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	metrics.RecordGrid(duration, len(grid.Cells))
	e.logger.Debug("exposure grid computed",
		"resolution", req.Resolution,
		"cells", len(grid.Cells),
		"obstacles", len(req.Obstacles),
		"duration_ms", duration.Milliseconds(),
	)

	e.cached.Store(&cachedGrid{key: key, grid: grid})
	return grid, nil
}

// compute runs the full grid pass with the worker pool.
func (e *Engine) compute(ctx context.Context, req Request) (*Grid, error) {
	res := req.Resolution
	totalCells := res * res

	jobs := make(chan cellJob, e.workers*2)
	results := make(chan cellResult, e.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				center := cellCenter(req.Bounds, res, job.row, job.col)
				analysis, err := shade.Daily(ctx, center, req.Date, req.Obstacles, req.Step)
				result := cellResult{row: job.row, col: job.col, hours: analysis.EffectiveSunHours, err: err}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for row := 0; row < res; row++ {
			for col := 0; col < res; col++ {
				select {
				case jobs <- cellJob{row: row, col: col}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	cells := make([]Cell, totalCells)
	var collected int
	minHours, maxHours := 24.0, 0.0

	for result := range results {
		if result.err != nil {
			// Inputs were validated up front, so a cell error is a
			// cancellation. Drain is unnecessary: workers exit on ctx.
			return nil, result.err
		}
		idx := result.row*res + result.col
		cells[idx] = Cell{
			Center:   cellCenter(req.Bounds, res, result.row, result.col),
			Row:      result.row,
			Col:      result.col,
			SunHours: result.hours,
		}
		if result.hours < minHours {
			minHours = result.hours
		}
		if result.hours > maxHours {
			maxHours = result.hours
		}
		collected++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if collected != totalCells {
		return nil, context.Canceled
	}

	return &Grid{
		Bounds:     req.Bounds,
		Date:       req.Date.UTC().Format(time.DateOnly),
		Resolution: res,
		Cells:      cells,
		MinHours:   minHours,
		MaxHours:   maxHours,
		ComputedAt: time.Now().UTC(),
	}, nil
}
