package main

import (
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotLatency draws one line per backend: mean latency of op against order.
// Nothing is written when no result matches op.
func PlotLatency(results []BenchResult, op WorkloadType, path string) error {
	byBackend := make(map[string]plotter.XYs)
	for _, r := range results {
		if r.Operation != string(op) {
			continue
		}
		byBackend[r.Backend] = append(byBackend[r.Backend], plotter.XY{X: float64(r.Order), Y: float64(r.LatencyNs) / 1000})
	}
	backends := make([]string, 0, len(byBackend))
	for b := range byBackend {
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil
	}
	sort.Strings(backends)

	p := plot.New()
	p.Title.Text = string(op) + " latency by order"
	p.X.Label.Text = "order (minimum degree)"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Label.Text = "latency (µs)"
	p.Legend.Top = true

	for i, b := range backends {
		pts := byBackend[b]
		sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(b, line, points)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
