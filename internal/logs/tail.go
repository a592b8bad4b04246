package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const pollInterval = 200 * time.Millisecond

// TailOptions selects which log lines Tail returns.
type TailOptions struct {
	// Offset is the byte position to resume from. A negative offset returns
	// the last Limit matching lines of the file instead.
	Offset int64
	Limit  int
	// Match keeps only lines containing this substring, typically a run ID.
	Match string
	// Wait blocks up to this long for new lines when none are available.
	Wait time.Duration
}

// TailResult carries the matching lines and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log at path. A missing file yields no lines, or
// is waited for when Wait is set.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	var size int64
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if opts.Offset < 0 || opts.Wait <= 0 {
			result.Offset = 0
			return result, nil
		}
	case err != nil:
		return result, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return result, fmt.Errorf("log path %q is a directory", path)
	default:
		size = info.Size()
	}

	if opts.Offset < 0 {
		lines, offset, err := scan(path, 0, opts.Match)
		if err != nil {
			return result, err
		}
		if opts.Limit > 0 && len(lines) > opts.Limit {
			lines = lines[len(lines)-opts.Limit:]
		}
		result.Lines, result.Offset = lines, offset
		return result, nil
	}

	offset := opts.Offset
	if offset > size {
		// rotated or truncated
		offset = 0
	}
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		lines, next, err := scan(path, offset, opts.Match)
		if err != nil {
			return result, err
		}
		result.Offset = next
		if len(lines) > 0 || !time.Now().Before(deadline) {
			result.Lines = lines
			return result, nil
		}
		offset = next
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}

// scan returns the complete lines after offset that contain match and the
// offset just past the last complete line. A trailing partial line is left
// for the next call.
func scan(path string, offset int64, match string) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if match == "" || strings.Contains(line, match) {
			lines = append(lines, line)
		}
	}
}
