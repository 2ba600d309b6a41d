// Package filesystem provides move and copy primitives with retry logic
// for transient errors on network filesystems.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransientError reports whether an error is worth retrying: NFS stale
// file handles (ESTALE) and resource contention (EBUSY).
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE || errno == syscall.EBUSY
	}

	return false
}

// isCrossDeviceError reports whether a rename failed because source and
// destination live on different filesystems.
func isCrossDeviceError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EXDEV
	}
	return false
}

// Move relocates src to dst. It prefers an atomic rename and falls back to
// copy-then-remove when src and dst are on different filesystems. The
// destination's parent directory is created if missing. Transient errors
// are retried with exponential backoff.
func Move(src, dst string, config RetryConfig) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := os.Rename(src, dst)
		if err == nil {
			if attempt > 0 {
				logging.Info("Move succeeded on retry %d for %s", attempt, src)
			}
			metrics.FilesystemMovesTotal.WithLabelValues("rename", "success").Inc()
			return nil
		}

		if isCrossDeviceError(err) {
			logging.Debug("Rename crossed filesystems for %s, falling back to copy", src)
			return moveByCopy(src, dst)
		}

		lastErr = err

		if !isTransientError(err) {
			metrics.FilesystemMovesTotal.WithLabelValues("rename", "error").Inc()
			return fmt.Errorf("moving %s to %s: %w", src, dst, err)
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues("move").Inc()
			logging.Debug("Move of %s hit transient error, retrying in %v (attempt %d/%d): %v",
				src, backoff, attempt+1, config.MaxRetries, err)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Move failed after %d retries for %s: %v", config.MaxRetries, src, lastErr)
	metrics.FilesystemMovesTotal.WithLabelValues("rename", "error").Inc()
	return fmt.Errorf("moving %s to %s: %w", src, dst, lastErr)
}

// moveByCopy copies src to dst and removes the source on success. Handles
// both regular files and directory trees.
func moveByCopy(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		metrics.FilesystemMovesTotal.WithLabelValues("copy", "error").Inc()
		return fmt.Errorf("inspecting %s: %w", src, err)
	}

	if info.IsDir() {
		err = copyTree(src, dst)
	} else {
		err = copyFile(src, dst, info.Mode())
	}
	if err != nil {
		// Leave any partial copy in place for inspection; the source is intact.
		metrics.FilesystemMovesTotal.WithLabelValues("copy", "error").Inc()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	if err := os.RemoveAll(src); err != nil {
		metrics.FilesystemMovesTotal.WithLabelValues("copy", "error").Inc()
		return fmt.Errorf("removing source %s after copy: %w", src, err)
	}

	metrics.FilesystemMovesTotal.WithLabelValues("copy", "success").Inc()
	return nil
}

// copyFile copies a regular file and fsyncs the destination so the data
// survives a crash before the source is removed.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree recursively copies a directory tree. Symlinks are skipped; the
// trash never follows links out of the managed directories.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}

		if !d.Type().IsRegular() {
			logging.Warn("Skipping non-regular file during copy: %s", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}
