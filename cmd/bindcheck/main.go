// Command bindcheck checks WGSL shaders against bind group layouts declared
// in a TOML manifest.
//
// Usage:
//
//	bindcheck -manifest layouts.toml [-watch] [-v]
//
// Every entry point of the manifest's shader is validated against the
// pipeline layout the manifest describes. The exit status is 1 when an
// entry point is incompatible and 2 when the manifest or the shader cannot
// be loaded. With -watch the check re-runs whenever either file changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gogpu/bindcore"
)

func main() {
	var (
		manifest = flag.String("manifest", "layouts.toml", "TOML manifest describing the layouts and shader")
		watch    = flag.Bool("watch", false, "re-run the check when the manifest or shader changes")
		verbose  = flag.Bool("v", false, "log layout creation and cache activity")
	)
	flag.Parse()

	logger := newLogger(os.Stderr, *verbose)
	if *verbose {
		bindcore.SetLogger(logger)
	}

	if !*watch {
		os.Exit(runOnce(*manifest, os.Stdout, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := watchManifest(ctx, *manifest, os.Stdout, logger); err != nil {
		logger.Error("watch failed", "err", err)
		os.Exit(2)
	}
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	h := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "bindcheck",
	})
	h.SetLevel(log.InfoLevel)
	if verbose {
		h.SetLevel(log.DebugLevel)
	}
	return slog.New(h)
}

// runOnce checks the manifest and returns the process exit status.
func runOnce(path string, out io.Writer, logger *slog.Logger) int {
	r, err := Check(path)
	if err != nil {
		logger.Error("check failed", "err", err)
		return 2
	}
	r.Print(out)
	if r.Failed() {
		return 1
	}
	return 0
}

// watchManifest checks the manifest now and after every change until ctx
// is done. The set of watched files follows the manifest's shader path.
func watchManifest(ctx context.Context, path string, out io.Writer, logger *slog.Logger) error {
	w, err := newWatcher(logger)
	if err != nil {
		return err
	}
	if err := w.track(path); err != nil {
		return err
	}
	check := func() {
		if m, err := LoadManifest(path); err == nil {
			if err := w.track(m.ShaderPath()); err != nil {
				logger.Warn("cannot watch shader", "path", m.ShaderPath(), "err", err)
			}
		}
		status := runOnce(path, out, logger)
		fmt.Fprintf(out, "--- exit status %d, watching for changes\n", status)
	}
	check()
	return w.run(ctx, check)
}
