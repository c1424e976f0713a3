// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command flipgallery is a headless photo gallery driven by a fixed-rate
// frame loop. It opens each configured photo set in turn, loads thumbnails
// incrementally on the worker runtime, and prints a status line whenever
// the displayed state changes.
//
// Usage:
//
//	flipgallery [-config gallery.yaml] [-frame-rate N] [-thumb-size N]
//	            [-workers N] [-depth N] [-dwell N] [-log-level L] [path ...]
//
// Each directory argument becomes a photo set; file arguments are
// collected into one extra set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"

	"code.hybscloud.com/flip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	level, _ := parseLevel(cfg.LogLevel)
	log := newLogger(stderr, level)

	g := NewGallery(cfg, log, stdout)
	b := flip.New().
		Workers(cfg.Workers).
		Depth(cfg.Depth).
		Name("flipgallery").
		Logger(log)
	p := flip.NewProgram[Model, Msg](b, g)
	defer p.Close()

	log.Info("flipgallery: started",
		"frame_rate", cfg.FrameRate, "workers", cfg.Workers, "steps", len(cfg.script()))

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer ticker.Stop()
	for !g.Done() {
		select {
		case <-ctx.Done():
			log.Info("flipgallery: interrupted", "frames", p.Frames())
			return 1
		case <-ticker.C:
		}
		if err := p.Frame(); err != nil {
			log.Error("flipgallery: frame", "err", err)
			return 1
		}
	}
	log.Info("flipgallery: done", "frames", p.Frames(), "errors", g.Errors())
	return 0
}

// parseArgs loads the config file, then applies flags and positional paths
// on top of it.
func parseArgs(args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet("flipgallery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML config file")
		frameRate  = fs.Int("frame-rate", 0, "frames per second")
		thumbSize  = fs.Int("thumb-size", 0, "thumbnail bounding box in pixels")
		workers    = fs.Int("workers", 0, "worker goroutines")
		depth      = fs.Int("depth", 0, "mailbox depth")
		dwell      = fs.Int("dwell", 0, "frames to stay on each step")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "frame-rate":
			cfg.FrameRate = *frameRate
		case "thumb-size":
			cfg.ThumbSize = *thumbSize
		case "workers":
			cfg.Workers = *workers
		case "depth":
			cfg.Depth = *depth
		case "dwell":
			cfg.DwellFrames = *dwell
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	var files []string
	for _, arg := range fs.Args() {
		fi, err := os.Stat(arg)
		if err != nil {
			return cfg, fmt.Errorf("flipgallery: %w", err)
		}
		if fi.IsDir() {
			cfg.Sets = append(cfg.Sets, SetCfg{Dir: arg})
		} else {
			files = append(files, arg)
		}
	}
	if len(files) > 0 {
		cfg.Sets = append(cfg.Sets, SetCfg{Paths: files})
	}
	return cfg, cfg.validate()
}

// newLogger writes text to terminals and JSON otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
