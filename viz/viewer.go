// Package viz renders point clouds for visual inspection.
package viz

import (
	"context"
	"image/color"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/pointcloud"
)

// Viewer shows a cloud. Nothing it produces is consumed by the pipeline.
type Viewer interface {
	View(ctx context.Context, name string, cloud pointcloud.PointCloud) error
}

// PlotViewer writes a PNG per cloud with a top-down (X/Y) and a side (X/Z) scatter, both
// colored by depth.
type PlotViewer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
	// MaxPoints caps how many points are drawn; larger clouds are strided evenly.
	MaxPoints int
	logger    logging.Logger
}

// NewPlotViewer returns a viewer writing into dir.
func NewPlotViewer(dir string, logger logging.Logger) *PlotViewer {
	return &PlotViewer{
		Dir:       dir,
		Width:     12 * vg.Inch,
		Height:    6 * vg.Inch,
		MaxPoints: 50000,
		logger:    logger,
	}
}

// Path returns the file View writes for name.
func (v *PlotViewer) Path(name string) string {
	return filepath.Join(v.Dir, name+".png")
}

// View renders cloud to Path(name). An empty cloud renders as empty axes.
func (v *PlotViewer) View(ctx context.Context, name string, cloud pointcloud.PointCloud) (err error) {
	pts := sample(pointcloud.Points(cloud), v.MaxPoints)
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := cloud.MetaData()

	top, err := v.panel(name+" (top)", "X (m)", "Y (m)", pts, meta, func(p r3.Vector) (float64, float64) { return p.X, p.Y })
	if err != nil {
		return err
	}
	// image Y grows downward; flip so the view matches the camera image
	top.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	side, err := v.panel(name+" (side)", "X (m)", "Z (m)", pts, meta, func(p r3.Vector) (float64, float64) { return p.X, p.Z })
	if err != nil {
		return err
	}

	img := vgimg.New(v.Width, v.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4, PadLeft: vg.Millimeter * 2}
	canvases := plot.Align([][]*plot.Plot{{top, side}}, tiles, dc)
	top.Draw(canvases[0][0])
	side.Draw(canvases[0][1])

	if err := os.MkdirAll(v.Dir, 0o750); err != nil {
		return err
	}
	path := v.Path(name)
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	v.logger.Infow("rendered cloud", "path", path, "points", len(pts))
	return nil
}

func (v *PlotViewer) panel(
	title, xLabel, yLabel string,
	pts []r3.Vector,
	meta pointcloud.MetaData,
	project func(r3.Vector) (float64, float64),
) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	if len(pts) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i].X, xys[i].Y = project(pt)
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	colors := moreland.SmoothBlueRed()
	colors.SetMin(meta.MinZ)
	colors.SetMax(meta.MaxZ)
	if meta.MaxZ <= meta.MinZ {
		colors.SetMax(meta.MinZ + 1)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		style := scatter.GlyphStyle
		c, err := colors.At(pts[i].Z)
		if err != nil {
			c = color.Black
		}
		style.Color = c
		return style
	}
	p.Add(scatter)
	return p, nil
}

// sample keeps at most limit points, evenly strided and in order.
func sample(pts []r3.Vector, limit int) []r3.Vector {
	if limit <= 0 || len(pts) <= limit {
		return pts
	}
	out := make([]r3.Vector, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, pts[i*len(pts)/limit])
	}
	return out
}
