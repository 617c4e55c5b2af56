package extraction

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

func streamStatus(frames int, err error) string {
	if err != nil {
		return "failed: " + err.Error()
	}
	if frames == 0 {
		return "no frames"
	}
	return "ok"
}

func frameRange(start, count int) string {
	if count == 0 {
		return "-"
	}
	return fmt.Sprintf("%08d..%08d", start, start+count-1)
}

// String renders the batch as a table of streams.
func (r *BatchResult) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("batch %s", r.RunID))
	t.AppendHeader(table.Row{"Stream", "Frames", "Range", "Status"})
	t.AppendRow(table.Row{"rgb", r.RGBFrames, frameRange(r.Start, r.RGBFrames), streamStatus(r.RGBFrames, r.RGBErr)})
	t.AppendRow(table.Row{"depth", r.DepthFrames, frameRange(r.Start, r.DepthFrames), streamStatus(r.DepthFrames, r.DepthErr)})
	calibration := "copied"
	if !r.CalibrationCopied {
		calibration = "missing"
	}
	t.AppendRow(table.Row{"calibration", "", "", calibration})
	t.AppendFooter(table.Row{"next frame", r.NextFrame, "", r.Elapsed.Round(time.Millisecond).String()})
	return t.Render()
}
