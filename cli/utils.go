package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/weedscan/weedpipe/config"
	"github.com/weedscan/weedpipe/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// Errorf prints a message prefixed with a bold red "Error: " prefix and exits with 1.
func Errorf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgRed).Fprint(w, "Error: ")
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
	os.Exit(1)
}

// runner holds what every action needs: the loaded config and a logger writing to the
// app's error stream.
type runner struct {
	cfg     config.Config
	logger  logging.Logger
	logFile *logging.FileAppender
}

func newRunner(c *cli.Context) (*runner, error) {
	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}

	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}
	logger := logging.NewBlankLogger("weedpipe")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	r := &runner{cfg: cfg, logger: logger}
	logFile := cfg.Log.File
	if c.IsSet(logFileFlag) {
		logFile = c.String(logFileFlag)
	}
	if logFile != "" {
		r.logFile = logging.NewFileAppender(logFile)
		logger.AddAppender(r.logFile)
	}
	if cfg.ConfigFilePath != "" {
		logger.Debugw("loaded config", "path", cfg.ConfigFilePath)
	}
	return r, nil
}

// close flushes the logger and releases the log file.
func (r *runner) close() error {
	// syncing a terminal fails on some platforms
	//nolint:errcheck
	r.logger.Sync()
	if r.logFile == nil {
		return nil
	}
	return r.logFile.Close()
}

// withRunner adapts an action that needs a runner.
func withRunner(action func(c *cli.Context, r *runner) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		r, err := newRunner(c)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, r.close())
		}()
		return action(c, r)
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() < n {
		return errors.Errorf("expected %d argument(s): %s", n, c.Command.ArgsUsage)
	}
	return nil
}

// VersionAction is the corresponding Action for 'version'.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		printf(c.App.Writer, "%s", info.String())
	}
	version := "?"
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			version = setting.Value[:8]
		}
	}
	appVersion := info.Main.Version
	if appVersion == "" || appVersion == "(devel)" {
		appVersion = "(dev)"
	}
	printf(c.App.Writer, "Version %s Git=%s", appVersion, version)
	return nil
}
