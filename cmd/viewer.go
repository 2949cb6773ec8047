/*
Copyright © 2025 Ken'ichiro Oyama <k1lowxb@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/k1LoW/scenery"
	"github.com/k1LoW/scenery/config"
	"github.com/k1LoW/scenery/handler/dot"
	"github.com/k1LoW/tail"
	slogmulti "github.com/samber/slog-multi"
)

const latestLogLines = 100

// tb keeps the latest JSON log lines for error.json.
var tb = tail.New(latestLogLines)

// newLogger fans records out to the log file in the state directory and the in-memory tail,
// to stderr with --verbose and to the progress marks printer when progress is true.
func newLogger(progress bool) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }
	var w io.Writer = tb
	if err := os.MkdirAll(config.StateHomePath(), 0o700); err == nil {
		f, err := os.OpenFile(filepath.Join(config.StateHomePath(), "scenery.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			w = io.MultiWriter(f, tb)
			closer = f.Close
		}
	}
	handlers := []slog.Handler{slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})}
	if verbose {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else if progress {
		h, err := dot.New(slog.NewTextHandler(io.Discard, nil))
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		handlers = append(handlers, h)
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// newViewer builds a viewer from the profile configuration. extra options override the configuration.
func newViewer(logger *slog.Logger, extra ...scenery.Option) (*scenery.Viewer, *config.Config, error) {
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, nil, err
	}
	opts := cfg.Options()
	opts = append(opts, scenery.WithLogger(logger))
	opts = append(opts, extra...)
	v, err := scenery.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create viewer: %w", err)
	}
	return v, cfg, nil
}
