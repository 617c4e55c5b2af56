package cli

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/weedscan/weedpipe/extraction"
	"github.com/weedscan/weedpipe/framecounter"
	"github.com/weedscan/weedpipe/utils"
)

// newAllocator opens the frame counter named by the config.
func (r *runner) newAllocator() (*framecounter.Allocator, *framecounter.FileStore) {
	store := framecounter.NewFileStore(utils.OSFileSystem{}, r.cfg.Counter.StatePath)
	return framecounter.NewAllocator(store, r.logger.Sublogger("counter")), store
}

// ExtractAction is the corresponding Action for 'extract'.
var ExtractAction = withRunner(extractAction)

func extractAction(c *cli.Context, r *runner) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	opts := r.cfg.Extraction.Options()
	if c.IsSet(extractFlagInterval) {
		opts.IntervalSeconds = c.Float64(extractFlagInterval)
	}
	binary := r.cfg.Extraction.FFmpegPath
	if c.IsSet(extractFlagFFmpeg) {
		binary = c.String(extractFlagFFmpeg)
	}

	allocator, _ := r.newAllocator()
	source := extraction.NewFFmpegSource(binary, r.logger.Sublogger("ffmpeg"))
	organizer := extraction.NewOrganizer(utils.OSFileSystem{}, source, allocator, opts, r.logger.Sublogger("organizer"))

	res, err := organizer.Organize(c.Context, c.Args().Get(0), c.Args().Get(1))
	if res != nil {
		printf(c.App.Writer, "%s", res.String())
	}
	if err != nil {
		return err
	}
	if res.RGBErr != nil {
		warningf(c.App.ErrWriter, "%v", res.RGBErr)
	}
	if res.DepthErr != nil {
		warningf(c.App.ErrWriter, "%v", res.DepthErr)
	}
	if !res.CalibrationCopied {
		warningf(c.App.ErrWriter, "no calibration file was copied; reconstruction of this dataset will fail")
	}
	return nil
}

// CounterShowAction is the corresponding Action for 'counter show'.
var CounterShowAction = withRunner(func(c *cli.Context, r *runner) error {
	_, store := r.newAllocator()
	state, err := store.Load(c.Context)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "next frame: %d (%s)", state.NextFrame, store.Path())
	return nil
})

// CounterSetAction is the corresponding Action for 'counter set'.
var CounterSetAction = withRunner(func(c *cli.Context, r *runner) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	next, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return errors.Wrapf(err, "invalid frame number %q", c.Args().First())
	}
	allocator, store := r.newAllocator()
	if err := allocator.Reset(c.Context, next); err != nil {
		return err
	}
	printf(c.App.Writer, "next frame set to %d (%s)", next, store.Path())
	return nil
})
