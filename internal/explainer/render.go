package explainer

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	positiveColor = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	negativeColor = color.RGBA{R: 205, G: 55, B: 55, A: 255}
)

// renderBarChart draws a horizontal bar per contribution, largest on top,
// and writes the image to path. The format follows the file extension.
func renderBarChart(path, title string, contribs []Contribution) error {
	if len(contribs) == 0 {
		return ErrNoFeatures
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	n := len(contribs)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	labels := make([]string, n)
	for i, c := range contribs {
		// nominal Y positions grow upward
		idx := n - 1 - i
		labels[idx] = c.Condition
		if c.Weight > 0 {
			pos[idx] = c.Weight
		} else {
			neg[idx] = c.Weight
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Impact"

	width := vg.Points(14)
	for _, s := range []struct {
		values plotter.Values
		color  color.Color
	}{
		{pos, positiveColor},
		{neg, negativeColor},
	} {
		bars, err := plotter.NewBarChart(s.values, width)
		if err != nil {
			return fmt.Errorf("failed to build bar chart: %w", err)
		}
		bars.Horizontal = true
		bars.Color = s.color
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.Add(plotter.NewGrid())
	p.NominalY(labels...)

	height := vg.Length(n)*0.45*vg.Inch + 1.5*vg.Inch
	if err := p.Save(9*vg.Inch, height, path); err != nil {
		return fmt.Errorf("failed to save explanation image: %w", err)
	}
	return nil
}
