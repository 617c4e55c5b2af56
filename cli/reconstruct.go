package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/weedscan/weedpipe/pointcloud"
	"github.com/weedscan/weedpipe/reconstruction"
	"github.com/weedscan/weedpipe/rimage"
	"github.com/weedscan/weedpipe/utils"
	"github.com/weedscan/weedpipe/viz"
)

// ReconstructAction is the corresponding Action for 'reconstruct'.
var ReconstructAction = withRunner(reconstructAction)

func reconstructAction(c *cli.Context, r *runner) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	cfg := r.cfg.Reconstruction
	if c.Bool(reconstructFlagRaw) {
		cfg = reconstruction.BackProjectionOnly()
		cfg.Depth = r.cfg.Reconstruction.Depth
	}
	rec, err := reconstruction.NewReconstructor(cfg, r.logger.Sublogger("reconstruction"))
	if err != nil {
		return err
	}

	output := r.cfg.Output
	if c.IsSet(reconstructFlagFormat) {
		output.Format = c.String(reconstructFlagFormat)
	}
	if !pointcloud.IsCloudExt(output.Ext()) {
		return errors.Errorf("unsupported cloud format %q", output.Format)
	}
	if c.IsSet(reconstructFlagBinary) {
		output.Binary = c.Bool(reconstructFlagBinary)
	}

	report, err := rec.ReconstructDataset(c.Context, reconstruction.DatasetRequest{
		DatasetDir: c.Args().First(),
		OutputDir:  c.String(reconstructFlagOutput),
		Ext:        output.Ext(),
		Binary:     output.Binary,
		Limit:      c.Int(reconstructFlagLimit),
	})
	if report != nil {
		printf(c.App.Writer, "%s", renderDatasetReport(report))
		if report.Empty > 0 {
			warningf(c.App.ErrWriter, "%d frame(s) produced an empty point cloud", report.Empty)
		}
	}
	return err
}

func renderDatasetReport(report *reconstruction.DatasetReport) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("fx=%.2f fy=%.2f cx=%.2f cy=%.2f",
		report.Intrinsics.Fx, report.Intrinsics.Fy, report.Intrinsics.Ppx, report.Intrinsics.Ppy))
	t.AppendHeader(table.Row{"Frame", "Stages", "Points", "Output"})
	for _, f := range report.Frames {
		stages := make([]string, 0, len(f.Stages))
		for _, s := range f.Stages {
			stages = append(stages, fmt.Sprintf("%s=%d", s.Name, s.Points))
		}
		out := filepath.Base(f.Output)
		switch {
		case f.Skipped != nil:
			out = "skipped: " + f.Skipped.Error()
		case f.Empty:
			out += " (empty)"
		}
		t.AppendRow(table.Row{f.Frame, strings.Join(stages, " "), f.Points, out})
	}
	t.AppendFooter(table.Row{"total", "", len(report.Frames),
		fmt.Sprintf("%d written (%d empty), %d failed", report.Written, report.Empty, report.Failed)})
	return t.Render()
}

// ViewAction is the corresponding Action for 'view'.
var ViewAction = withRunner(func(c *cli.Context, r *runner) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	viewer := viz.NewPlotViewer(c.String(viewFlagOutDir), r.logger.Sublogger("viz"))
	if c.IsSet(viewFlagMaxPoints) {
		viewer.MaxPoints = c.Int(viewFlagMaxPoints)
	}
	for _, path := range c.Args().Slice() {
		cloud, err := pointcloud.NewFromFile(path, r.logger)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := viewer.View(c.Context, name, cloud); err != nil {
			return err
		}
		printf(c.App.Writer, "%s: %d points -> %s", path, cloud.Size(), viewer.Path(name))
	}
	return nil
})

// DepthStatsAction is the corresponding Action for 'stats'.
func DepthStatsAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Frame", "Size", "Valid", "Min", "P5", "Median", "Mean", "P95", "Max", "Std"})
	for _, path := range c.Args().Slice() {
		dm, err := rimage.ReadDepthMap(path)
		if err != nil {
			return err
		}
		s, err := rimage.ComputeDepthStats(dm)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			filepath.Base(path),
			fmt.Sprintf("%dx%d", dm.Width(), dm.Height()),
			fmt.Sprintf("%.1f%%", 100*s.ValidRatio()),
			s.Min, s.P5, s.Median, fmt.Sprintf("%.1f", s.Mean), s.P95, s.Max, fmt.Sprintf("%.1f", s.StdDev),
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// InventoryAction is the corresponding Action for 'inventory'.
func InventoryAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	entries, err := utils.Inventory(c.Args().First(), c.Bool(inventoryFlagAll))
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Directory", "Files"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Dir, e.Size()})
	}
	t.AppendFooter(table.Row{"total", utils.TotalFiles(entries)})
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

