package dot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/k1LoW/errors"
	"github.com/mattn/go-colorable"
)

var (
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var _ slog.Handler = (*dotHandler)(nil)

// dotHandler renders viewer log records as one-character progress marks.
// The spinner runs while a preview is waiting for its high resolution upgrade.
type dotHandler struct {
	handler slog.Handler
	spinner *spinner.Spinner
	stdout  io.Writer
	state   *state
}

// state is shared between handlers derived with WithAttrs and WithGroup.
type state struct {
	mu      sync.Mutex
	prefix  []byte
	pending int
}

func New(h slog.Handler) (_ *dotHandler, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()

	stdout := colorable.NewColorableStdout()
	return newHandler(h, stdout)
}

func newHandler(h slog.Handler, stdout io.Writer) (_ *dotHandler, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(stdout))
	if err := s.Color("yellow"); err != nil {
		return nil, err
	}
	s.Start()
	s.Disable()
	return &dotHandler{
		handler: h,
		spinner: s,
		stdout:  stdout,
		state:   &state{},
	}, nil
}

func (h *dotHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *dotHandler) Handle(ctx context.Context, r slog.Record) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()

	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	switch {
	case r.Message == "served preview":
		h.state.pending++
		if err := h.write([]byte(yellow("."))); err != nil {
			return err
		}
		h.spin()
		return nil
	case r.Message == "upgraded image":
		h.state.pending = max(h.state.pending-1, 0)
		if err := h.write([]byte(green("^"))); err != nil {
			return err
		}
		h.spin()
		return nil
	case r.Message == "prefetched image":
		if err := h.write([]byte(cyan("+"))); err != nil {
			return err
		}
		h.spin()
		return nil
	case r.Message == "switched scene" || strings.HasPrefix(r.Message, "moving to"):
		if err := h.write([]byte(gray("|"))); err != nil {
			return err
		}
		h.spin()
		return nil
	case strings.Contains(r.Message, "failed to"):
		if strings.Contains(r.Message, "upgrade") {
			h.state.pending = max(h.state.pending-1, 0)
		}
		if err := h.write([]byte(red("!"))); err != nil {
			return err
		}
		h.spin()
		return nil
	case r.Message == "export completed":
		h.state.pending = 0
		h.spin()
		_, _ = h.stdout.Write([]byte("\n"))
		return nil
	}
	return nil
}

func (h *dotHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dotHandler{handler: h.handler.WithAttrs(attrs), spinner: h.spinner, stdout: h.stdout, state: h.state}
}

func (h *dotHandler) WithGroup(name string) slog.Handler {
	return &dotHandler{handler: h.handler.WithGroup(name), spinner: h.spinner, stdout: h.stdout, state: h.state}
}

// spin shows the spinner after the marks while upgrades are pending.
func (h *dotHandler) spin() {
	if h.state.pending > 0 {
		h.spinner.Prefix = string(h.state.prefix)
		if !h.spinner.Enabled() {
			h.spinner.Enable()
		}
		return
	}
	if h.spinner.Enabled() {
		h.spinner.Disable()
		_, _ = h.stdout.Write(h.state.prefix)
	}
}

func (h *dotHandler) write(s []byte) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()

	if h.spinner.Enabled() {
		h.spinner.Disable()
		_, _ = h.stdout.Write(h.state.prefix)
	}
	_, err = h.stdout.Write(s)
	if err != nil {
		return err
	}
	h.state.prefix = append(h.state.prefix, s...)
	return nil
}
