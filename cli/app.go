package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag  = "config"
	debugFlag   = "debug"
	logFileFlag = "log-file"

	extractFlagInterval = "interval"
	extractFlagFFmpeg   = "ffmpeg"

	reconstructFlagOutput = "output"
	reconstructFlagFormat = "format"
	reconstructFlagBinary = "binary"
	reconstructFlagLimit  = "limit"
	reconstructFlagRaw    = "raw"

	viewFlagOutDir    = "out-dir"
	viewFlagMaxPoints = "max-points"

	inventoryFlagAll = "all"
)

var app = &cli.App{
	Name:            "weedpipe",
	Usage:           "turn weed survey recordings into point clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE` (json or yaml)",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, rotated by size",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "extract",
			Usage:     "extract the RGB and depth frames of one recording session into a dataset",
			ArgsUsage: "<session-dir> <output-dir>",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  extractFlagInterval,
					Usage: "seconds between two extracted frames (overrides config)",
				},
				&cli.StringFlag{
					Name:  extractFlagFFmpeg,
					Usage: "path to the ffmpeg binary (overrides config)",
				},
			},
			Action: ExtractAction,
		},
		{
			Name:      "reconstruct",
			Usage:     "build a point cloud for every depth frame of a dataset",
			ArgsUsage: "<dataset-dir>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  reconstructFlagOutput,
					Usage: "write clouds to `DIR` instead of <dataset-dir>/clouds",
				},
				&cli.StringFlag{
					Name:  reconstructFlagFormat,
					Usage: "cloud file format, ply, pcd or las (overrides config)",
				},
				&cli.BoolFlag{
					Name:  reconstructFlagBinary,
					Usage: "write binary clouds",
				},
				&cli.IntFlag{
					Name:  reconstructFlagLimit,
					Usage: "only reconstruct the first N frames",
				},
				&cli.BoolFlag{
					Name:  reconstructFlagRaw,
					Usage: "skip every cleaning stage and only back-project",
				},
			},
			Action: ReconstructAction,
		},
		{
			Name:      "view",
			Usage:     "render point cloud files to png previews",
			ArgsUsage: "<cloud-file> [cloud-file...]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  viewFlagOutDir,
					Usage: "write previews to `DIR`",
					Value: ".",
				},
				&cli.IntFlag{
					Name:  viewFlagMaxPoints,
					Usage: "plot at most N points per cloud",
				},
			},
			Action: ViewAction,
		},
		{
			Name:      "stats",
			Usage:     "summarize the samples of depth frames",
			ArgsUsage: "<depth-frame> [depth-frame...]",
			Action:    DepthStatsAction,
		},
		{
			Name:      "inventory",
			Usage:     "list the directories of a dataset with their file counts",
			ArgsUsage: "<dir>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  inventoryFlagAll,
					Usage: "include hidden files and directories",
				},
			},
			Action: InventoryAction,
		},
		{
			Name:            "counter",
			Usage:           "work with the persistent frame counter",
			HideHelpCommand: true,
			Subcommands: []*cli.Command{
				{
					Name:   "show",
					Usage:  "print the next frame number",
					Action: CounterShowAction,
				},
				{
					Name:      "set",
					Usage:     "set the next frame number",
					ArgsUsage: "<next-frame>",
					Action:    CounterSetAction,
				},
			},
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
