package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// HealthChecker is satisfied by the LLM providers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// LLM checks that the provider is configured and its model is reachable.
func LLM(h HealthChecker) Probe {
	return Probe{Name: "LLM", Critical: true, Check: h.HealthCheck}
}

// Database checks the sqlite connection.
func Database(p Pinger) Probe {
	return Probe{Name: "Database", Critical: true, Check: p.PingContext}
}

// Writable checks that a directory exists or can be created and accepts
// files. Log and data directories use it.
func Writable(name, dir string) Probe {
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return fmt.Errorf("directory %s is not writable: %w", dir, err)
			}
			name := f.Name()
			return errors.Join(f.Close(), os.Remove(name))
		},
	}
}

// File checks an optional file, passing when path is empty.
func File(name, path string) Probe {
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			if path == "" {
				return nil
			}
			if _, err := os.Stat(filepath.Clean(path)); err != nil {
				return err
			}
			return nil
		},
	}
}
