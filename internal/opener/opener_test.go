package opener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/promptcraft/shared/logger"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos     string
		app      string
		wantName string
		wantArgs []string
	}{
		{"linux", "", "xdg-open", []string{"/tmp/a.png"}},
		{"linux", "gimp", "gimp", []string{"/tmp/a.png"}},
		{"darwin", "", "open", []string{"/tmp/a.png"}},
		{"darwin", "Preview", "open", []string{"-a", "Preview", "/tmp/a.png"}},
		{"windows", "", "cmd", []string{"/c", "start", "", "/tmp/a.png"}},
		{"windows", "mspaint", "mspaint", []string{"/tmp/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.app, func(t *testing.T) {
			name, args := command(tt.goos, "/tmp/a.png", tt.app)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestOpener_Open(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	var gotName string
	var gotArgs []string
	o := &Opener{
		logger: logger.NewDiscard().Logger,
		goos:   "linux",
		start: func(name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		},
	}

	require.NoError(t, o.Open(context.Background(), path, ""))
	assert.Equal(t, "xdg-open", gotName)
	assert.Equal(t, []string{path}, gotArgs)

	err := o.Open(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "")
	assert.Error(t, err)

	assert.Error(t, o.Open(context.Background(), "", ""))

	o.start = func(string, ...string) error { return errors.New("exec: not found") }
	err = o.Open(context.Background(), path, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch nope")
}
