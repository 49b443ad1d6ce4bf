// Package automation drives the desktop point-and-click tool.
//
// The tool never returns values directly. A capture run writes the pointer
// position to the coordination file as two lines, x then y; a click run takes
// the coordinates as arguments and reports only its exit status.
package automation

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/turtacn/Optibench/internal/supervisor"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Bridge serializes invocations: there is one desktop and one pointer.
type Bridge struct {
	mu     sync.Mutex
	cfg    protocol.AutomationConfig
	runner supervisor.Runner
	log    logger.Logger
}

func New(cfg protocol.AutomationConfig, runner supervisor.Runner) *Bridge {
	if runner == nil {
		runner = supervisor.ExecRunner{}
	}
	return &Bridge{
		cfg:    cfg,
		runner: runner,
		log:    logger.Log.With("component", "automation"),
	}
}

// Config returns the configured paths. The value is a copy.
func (b *Bridge) Config() protocol.AutomationConfig { return b.cfg }

// ConfigMap returns the configured paths keyed by their config names.
func (b *Bridge) ConfigMap() map[string]string {
	return map[string]string{
		"executable":        b.cfg.Executable,
		"capture_script":    b.cfg.CaptureScript,
		"click_script":      b.cfg.ClickScript,
		"coordination_file": b.cfg.CoordinationFile,
	}
}

// CapturePosition runs the capture script and reads the position it leaves in
// the coordination file. It does not retry.
func (b *Bridge) CapturePosition() (protocol.Point, error) {
	if b.cfg.Executable == "" || b.cfg.CaptureScript == "" || b.cfg.CoordinationFile == "" {
		return protocol.Point{}, errors.New(errors.ErrCodeAutomation, "CapturePosition", "capture is not configured", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// A result left over from an earlier run must not be mistaken for this one.
	if err := os.Remove(b.cfg.CoordinationFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return protocol.Point{}, errors.New(errors.ErrCodeAutomation, "CapturePosition", "cannot clear coordination file", err)
	}

	if err := b.run("CapturePosition", b.cfg.Executable, b.cfg.CaptureScript); err != nil {
		return protocol.Point{}, err
	}

	data, err := os.ReadFile(b.cfg.CoordinationFile)
	if err != nil {
		return protocol.Point{}, errors.New(errors.ErrCodeAutomation, "CapturePosition", "coordination file not written", err)
	}
	p, err := ParseCoordinates(data)
	if err != nil {
		return protocol.Point{}, errors.New(errors.ErrCodeAutomation, "CapturePosition", "malformed coordination file", err)
	}
	b.log.Info("Automation: position captured", "x", p.X, "y", p.Y)
	return p, nil
}

// ClickAt runs the click script with x and y as arguments.
func (b *Bridge) ClickAt(x, y float64) error {
	if b.cfg.Executable == "" || b.cfg.ClickScript == "" {
		return errors.New(errors.ErrCodeAutomation, "ClickAt", "click is not configured", nil)
	}
	if !finite(x) || !finite(y) {
		return errors.New(errors.ErrCodeInvalidArgument, "ClickAt", fmt.Sprintf("coordinates (%v, %v) are not finite", x, y), nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	xs := strconv.FormatFloat(x, 'f', -1, 64)
	ys := strconv.FormatFloat(y, 'f', -1, 64)
	if err := b.run("ClickAt", b.cfg.Executable, b.cfg.ClickScript, xs, ys); err != nil {
		return err
	}
	b.log.Info("Automation: clicked", "x", xs, "y", ys)
	return nil
}

func (b *Bridge) run(op string, command ...string) error {
	res, err := b.runner.Run(command)
	if err != nil {
		return errors.New(errors.ErrCodeAutomation, op, "cannot start "+command[0], err)
	}
	if !res.Success() {
		b.log.Error("Automation: tool failed", "op", op, "code", res.ExitCode,
			"stderr", strings.TrimSpace(string(res.Stderr)))
		return errors.New(errors.ErrCodeAutomation, op, fmt.Sprintf("exit status %d", res.ExitCode), nil)
	}
	return nil
}

// ParseCoordinates reads the coordination file format: exactly two lines,
// each a decimal number, x then y. CRLF line endings, surrounding blanks,
// trailing empty lines and a leading UTF-8 BOM are tolerated.
func ParseCoordinates(data []byte) (protocol.Point, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) != 2 {
		return protocol.Point{}, fmt.Errorf("expected 2 lines, found %d", len(lines))
	}

	var vals [2]float64
	for i, l := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(l), 64)
		if err != nil || !finite(v) {
			return protocol.Point{}, fmt.Errorf("line %d: %q is not a decimal number", i+1, l)
		}
		vals[i] = v
	}
	return protocol.Point{X: vals[0], Y: vals[1]}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Personal.AI order the ending
