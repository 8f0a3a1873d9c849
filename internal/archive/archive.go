// Package archive packages a collector output directory into a single
// zip file for delivery. It is independent of the job lifecycle; the
// caller is expected to archive after observing a successful done
// event, but nothing here enforces that ordering.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BuildError reports a failed archive operation.
type BuildError struct {
	Source  string
	Dest    string
	Message string
	Err     error
}

// Error formats archive failures for logs and UI.
func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("archive %s: %s", e.Source, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *BuildError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Build zips the directory tree under sourceDir into a single file at
// destPath, overwriting any existing file there. Entries are stored
// relative to sourceDir, so extraction reproduces the tree without the
// source directory's own name as a prefix. A partially written archive
// is removed when the build fails.
func Build(sourceDir, destPath string) (string, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		msg := "cannot access source directory"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "source directory does not exist"
		}
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: msg, Err: err}
	}
	if !info.IsDir() {
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "source is not a directory"}
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "cannot read source directory", Err: err}
	}
	if len(entries) == 0 {
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "source directory is empty"}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "cannot create destination file", Err: err}
	}

	if err := writeTree(out, sourceDir); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "writing archive failed", Err: err}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return "", &BuildError{Source: sourceDir, Dest: destPath, Message: "closing archive failed", Err: err}
	}
	return destPath, nil
}

// writeTree streams every file and directory under sourceDir into one
// zip stream, with forward-slash relative entry names.
func writeTree(out io.Writer, sourceDir string) error {
	zw := zip.NewWriter(out)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		name := filepath.ToSlash(rel)
		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = io.Copy(dst, src)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}

	return zw.Close()
}
