// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxFrameRate keeps the frame interval at or above one millisecond.
const maxFrameRate = 1000

// Config is the flipgallery configuration file.
type Config struct {
	FrameRate   int      `yaml:"frame_rate"`
	ThumbSize   int      `yaml:"thumb_size"`
	Workers     int      `yaml:"workers"`
	Depth       int      `yaml:"depth"`
	DwellFrames int      `yaml:"dwell_frames"`
	LogLevel    string   `yaml:"log_level"`
	Sets        []SetCfg `yaml:"sets"`
	Photo       string   `yaml:"photo"`
}

// SetCfg names one photo set: a directory or an explicit list of files.
type SetCfg struct {
	Dir   string   `yaml:"dir"`
	Paths []string `yaml:"paths"`
}

func defaultConfig() Config {
	return Config{
		FrameRate:   60,
		ThumbSize:   100,
		Workers:     4,
		Depth:       1,
		DwellFrames: 120,
		LogLevel:    "info",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("flipgallery: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("flipgallery: parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.FrameRate < 1 || c.FrameRate > maxFrameRate {
		errs = append(errs, fmt.Errorf("frame_rate must be in [1, %d], got %d", maxFrameRate, c.FrameRate))
	}
	if c.ThumbSize < 1 {
		errs = append(errs, fmt.Errorf("thumb_size must be >= 1, got %d", c.ThumbSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Depth < 1 {
		errs = append(errs, fmt.Errorf("depth must be >= 1, got %d", c.Depth))
	}
	if c.DwellFrames < 1 {
		errs = append(errs, fmt.Errorf("dwell_frames must be >= 1, got %d", c.DwellFrames))
	}
	for i, s := range c.Sets {
		if (s.Dir == "") == (len(s.Paths) == 0) {
			errs = append(errs, fmt.Errorf("sets[%d]: exactly one of dir or paths is required", i))
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("flipgallery: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// script turns the configured sets and photo into the message sequence
// the gallery walks through.
func (c Config) script() []Msg {
	var msgs []Msg
	for _, s := range c.Sets {
		if s.Dir != "" {
			msgs = append(msgs, OpenSet{Dir: s.Dir})
		} else {
			msgs = append(msgs, OpenSet{Paths: s.Paths})
		}
	}
	if c.Photo != "" {
		msgs = append(msgs, Open{Path: c.Photo})
	}
	return msgs
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}
