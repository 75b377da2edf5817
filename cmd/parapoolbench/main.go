// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

// Command parapoolbench measures ParFor throughput across a range of worker
// counts and renders the result as an SVG chart. It exists to answer the
// routine tuning question "where does this host stop scaling" without
// dragging a profiler out.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/adriftlabs/parapool"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	var (
		maxThreads = flag.Int("maxthreads", runtime.NumCPU(), "largest worker count to measure")
		size       = flag.Int("size", 1<<16, "iterations per ParFor submission")
		reps       = flag.Int("reps", 5, "submissions per worker count; the best is kept")
		outDir     = flag.String("out", "charts", "directory to write the chart into")
	)
	flag.Parse()

	if *maxThreads < 1 || *size < 1 || *reps < 1 {
		log.Fatalf("maxthreads, size, and reps must all be positive")
	}

	ctx := context.Background()
	if err := warmUp(ctx); err != nil {
		log.Fatalf("warm-up failed: %v", err)
	}

	var points plotter.XYs
	for threads := 1; threads <= *maxThreads; threads *= 2 {
		// Tear the pool down between measurements: lowering the desired
		// count never terminates existing workers, so reuse would leak
		// the previous round's concurrency into this one.
		parapool.ShutdownThreadPool()
		parapool.SetNumThreads(threads)

		best := time.Duration(math.MaxInt64)
		for rep := 0; rep < *reps; rep++ {
			start := time.Now()
			status := parapool.ParFor(ctx, busyWork, 0, int32(*size), nil)
			elapsed := time.Since(start)
			if status != 0 {
				log.Fatalf("ParFor returned status %d", status)
			}
			if elapsed < best {
				best = elapsed
			}
		}

		throughput := float64(*size) / best.Seconds()
		fmt.Printf("threads=%-4d best=%-12v throughput=%.0f iters/s\n", threads, best, throughput)
		points = append(points, plotter.XY{X: float64(threads), Y: throughput})
	}
	parapool.ShutdownThreadPool()

	if err := renderChart(points, *outDir); err != nil {
		log.Fatalf("Error creating chart: %v", err)
	}
	fmt.Printf("Chart written to %s/parfor_scaling.svg\n", *outDir)
}

// warmUp faults in the scheduler's lazy initialization and gives the runtime
// a chance to settle before anything is timed. The submissions race each
// other on purpose: concurrent owners exercise the same wake paths the
// measurement will.
func warmUp(ctx context.Context) error {
	parapool.SetNumThreads(runtime.NumCPU())

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			if status := parapool.ParFor(ctx, busyWork, 0, 1<<12, nil); status != 0 {
				return fmt.Errorf("warm-up ParFor returned status %d", status)
			}
			return nil
		})
	}
	return g.Wait()
}

// sink defeats dead-code elimination of the busy-work loop.
var sink float64

func busyWork(_ context.Context, idx int32, _ parapool.Closure) int {
	acc := float64(idx)
	for i := 0; i < 64; i++ {
		acc = math.Sqrt(acc + float64(i))
	}
	sink = acc
	return 0
}

func renderChart(points plotter.XYs, outDir string) error {
	p := plot.New()

	p.Title.Text = "ParFor Scaling"
	p.X.Label.Text = "Workers"
	p.Y.Label.Text = "Iterations / Second"

	p.Title.TextStyle.Color = color.Gray{128}
	p.X.Color = color.Gray{128}
	p.Y.Color = color.Gray{128}
	p.X.Label.TextStyle.Color = color.Gray{128}
	p.Y.Label.TextStyle.Color = color.Gray{128}
	p.X.Tick.Color = color.Gray{128}
	p.Y.Tick.Color = color.Gray{128}
	p.X.Tick.Label.Color = color.Gray{128}
	p.Y.Tick.Label.Color = color.Gray{128}
	p.BackgroundColor = color.Transparent

	p.X.Scale = plot.LogScale{}
	xTicks := make([]plot.Tick, len(points))
	for i, pt := range points {
		xTicks[i] = plot.Tick{Value: pt.X, Label: fmt.Sprintf("%.0f", pt.X)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)

	line, scatter, err := plotter.NewLinePoints(points)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	scatter.Color = line.Color
	p.Add(line, scatter)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	return p.Save(9*vg.Inch, 6*vg.Inch, outDir+"/parfor_scaling.svg")
}
