package scan

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var plotLineColor = color.RGBA{R: 37, G: 150, B: 190, A: 255}

const (
	plotH = 4 * vg.Inch
	plotW = 6 * vg.Inch

	maxTicks = 10
)

// SaveRatioPlot renders the per-marker likelihood ratios as a line plot to
// <prefix>.png.
func SaveRatioPlot(ratios []float64, prefix string) error {
	p := plot.New()
	p.X.Label.Text = "Marker"
	p.Y.Label.Text = "Likelihood Ratio"
	p.X.Min = 0
	p.X.Max = float64(len(ratios))
	p.X.Tick.Marker = plot.TickerFunc(func(_, max float64) []plot.Tick {
		step := 1
		if int(max) > maxTicks {
			step = int(math.Ceil(max / maxTicks))
		}
		ticks := make([]plot.Tick, 0, int(max)/step+2)
		for i := 0; i <= int(max); i++ {
			if i%step == 0 {
				ticks = append(ticks, plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", i)})
			} else {
				ticks = append(ticks, plot.Tick{Value: float64(i)})
			}
		}
		return ticks
	})
	pts := make(plotter.XYs, len(ratios))
	for j, ratio := range ratios {
		pts[j].X = float64(j)
		pts[j].Y = ratio
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = plotLineColor
	p.Add(line)
	return p.Save(plotW, plotH, fmt.Sprintf("%s.png", prefix))
}
