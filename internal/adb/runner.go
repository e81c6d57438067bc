// Package adb implements the host abstractions for an Android device reached
// through the adb command-line tool.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Runner runs a shell command on the device and returns its stdout.
type Runner interface {
	Shell(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs adb as a subprocess.
type ExecRunner struct {
	Path    string
	Serial  string
	Timeout time.Duration
}

// Shell runs "adb [-s serial] shell args...".
func (r *ExecRunner) Shell(ctx context.Context, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	full := make([]string, 0, len(args)+3)
	if r.Serial != "" {
		full = append(full, "-s", r.Serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	path := r.Path
	if path == "" {
		path = FindPath()
	}
	cmd := exec.CommandContext(ctx, path, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return "", fmt.Errorf("adb shell %s: %w: %s", strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("adb shell %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

// FindPath locates the adb binary: ANDROID_HOME platform-tools first, then
// PATH.
func FindPath() string {
	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(env); home != "" {
			p := filepath.Join(home, "platform-tools", name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}
