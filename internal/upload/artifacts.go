package upload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// RunIDPlaceholder in a prefix is replaced by the test run id.
const RunIDPlaceholder = "{run_id}"

// Object is one uploaded artifact.
type Object struct {
	LocalPath  string
	RemotePath string
	Size       int64
}

// Uploader copies local artifacts through a Provider.
type Uploader struct {
	provider Provider
	prefix   string
	logger   *slog.Logger

	attempts uint
	delay    time.Duration
}

// NewUploader creates an Uploader. runID replaces RunIDPlaceholder in prefix.
func NewUploader(provider Provider, prefix, runID string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		provider: provider,
		prefix:   strings.Trim(strings.ReplaceAll(prefix, RunIDPlaceholder, runID), "/"),
		logger:   logger.With("provider", provider.Name()),
		attempts: 3,
		delay:    time.Second,
	}
}

// RemotePath returns the object key for rel, a slash separated path.
func (u *Uploader) RemotePath(rel string) string {
	if u.prefix == "" {
		return rel
	}
	return path.Join(u.prefix, rel)
}

// UploadAll uploads every path. Files keep their base name; directories are
// walked and keep their layout under the directory's base name. Missing
// paths are skipped. The first failing file aborts the upload.
func (u *Uploader) UploadAll(ctx context.Context, paths []string) ([]Object, error) {
	var uploaded []Object

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			u.logger.Debug("artifact_missing", "path", p, "error", err)
			continue
		}

		if !info.IsDir() {
			obj, err := u.uploadFile(ctx, p, filepath.Base(p), info.Size())
			if err != nil {
				return uploaded, err
			}
			uploaded = append(uploaded, obj)
			continue
		}

		root := filepath.Dir(p)
		err = filepath.WalkDir(p, func(local string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, local)
			if err != nil {
				return err
			}
			obj, err := u.uploadFile(ctx, local, filepath.ToSlash(rel), fi.Size())
			if err != nil {
				return err
			}
			uploaded = append(uploaded, obj)
			return nil
		})
		if err != nil {
			return uploaded, err
		}
	}

	u.logger.Info("artifacts_uploaded", "count", len(uploaded), "prefix", u.prefix)
	return uploaded, nil
}

// uploadFile reopens the file for every attempt so a retry starts from the
// first byte.
func (u *Uploader) uploadFile(ctx context.Context, local, rel string, size int64) (Object, error) {
	remote := u.RemotePath(rel)

	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(local)
			if err != nil {
				return err
			}
			defer f.Close()
			return u.provider.Upload(ctx, f, size, remote)
		},
		retry.Attempts(u.attempts),
		retry.Delay(u.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !os.IsNotExist(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			u.logger.Warn("artifact_upload_retry", "path", local, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", local, err)
	}

	u.logger.Debug("artifact_uploaded", "path", local, "remote", remote, "bytes", size)
	return Object{LocalPath: local, RemotePath: remote, Size: size}, nil
}
