// Package opener hands local files and folders to the desktop environment.
package opener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
)

// Opener launches the platform's default handler, or a named application
type Opener struct {
	logger *slog.Logger
	goos   string
	start  func(name string, args ...string) error
}

// New creates an Opener for the running platform
func New(logger *slog.Logger) *Opener {
	return &Opener{logger: logger, goos: runtime.GOOS, start: startDetached}
}

// Open launches path. The launched process outlives the request.
func (o *Opener) Open(ctx context.Context, path, app string) error {
	if path == "" {
		return errors.New("path is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	name, args := command(o.goos, path, app)
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("failed to launch %s: %w", name, err)
	}

	o.logger.Info("Opened path",
		slog.String("path", path),
		slog.String("app", app),
		slog.String("command", name),
	)
	return nil
}

// command picks the launcher for goos
func command(goos, path, app string) (string, []string) {
	switch goos {
	case "darwin":
		if app != "" {
			return "open", []string{"-a", app, path}
		}
		return "open", []string{path}
	case "windows":
		if app != "" {
			return app, []string{path}
		}
		// the empty argument is start's window title
		return "cmd", []string{"/c", "start", "", path}
	default:
		if app != "" {
			return app, []string{path}
		}
		return "xdg-open", []string{path}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// reap the child when it exits
	go func() { _ = cmd.Wait() }()
	return nil
}
