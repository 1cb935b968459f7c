package status

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func plotWithDefaults() *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.TextStyle.Color = color.White
	p.Y.Label.TextStyle.Color = color.White
	p.Y.Color = color.White
	p.X.Label.TextStyle.Color = color.White
	p.X.Color = color.White
	p.Legend.TextStyle.Color = color.White
	p.X.Tick.Color = color.White
	p.Y.Tick.Color = color.White
	p.X.Tick.Label.Color = color.White
	p.Y.Tick.Label.Color = color.White

	return p
}

// pulseTrain turns alternating high/low durations into the corners of a square wave.
func pulseTrain(pulses []uint16) plotter.XYs {
	ret := make(plotter.XYs, 0, len(pulses)*2)
	t := 0.0
	for i, d := range pulses {
		level := 0.0
		if i%2 == 0 {
			level = 1
		}
		ret = append(ret, plotter.XY{X: t, Y: level})
		t += float64(d)
		ret = append(ret, plotter.XY{X: t, Y: level})
	}
	return ret
}

// PlotPulses renders a capture as a PNG square wave against time in microseconds.
func PlotPulses(title string, pulses []uint16) ([]byte, error) {
	if len(pulses) == 0 {
		return nil, fmt.Errorf("no pulses to plot")
	}

	p := plotWithDefaults()
	p.Title.Text = title
	p.Y.Label.Text = "Level"
	p.Y.Min = -0.25
	p.Y.Max = 1.25
	p.X.Label.Text = "t (us)"

	grid := plotter.NewGrid()
	p.Add(grid)

	line, err := plotter.NewLine(pulseTrain(pulses))
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{G: 255, A: 255}
	p.Add(line)

	var imageData bytes.Buffer
	w, err := p.WriterTo(12*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil, err
	}
	return imageData.Bytes(), nil
}
