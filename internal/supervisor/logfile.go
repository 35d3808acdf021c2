package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const tailChunk = 8 << 10

// rotateLog compresses path into <base>-<timestamp>.log.gz next to it and
// truncates the original when it is larger than maxSize. maxSize <= 0
// disables rotation.
func rotateLog(path string, maxSize int64, now time.Time) (string, error) {
	if maxSize <= 0 {
		return "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if info.Size() <= maxSize {
		return "", nil
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	archive := fmt.Sprintf("%s-%s.log.gz", base, now.Format("20060102-150405"))

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log for rotation: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(archive, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create log archive: %w", err)
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	zw.ModTime = now
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		os.Remove(archive)
		return "", fmt.Errorf("failed to compress log: %w", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(archive)
		return "", fmt.Errorf("failed to finish log archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close log archive: %w", err)
	}

	if err := os.Truncate(path, 0); err != nil {
		return archive, fmt.Errorf("failed to truncate rotated log: %w", err)
	}
	return archive, nil
}

// TailFile returns the last n lines of path, reading backwards in chunks.
// A missing file is an error.
func TailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var (
		size = info.Size()
		buf  []byte
		off  = size
	)
	for off > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(tailChunk)
		if off < step {
			step = off
		}
		off -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, off); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
