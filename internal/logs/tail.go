package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"vidseg/internal/logging"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// TailOptions controls one read of a JSON log file. A negative Offset reads
// the last Limit lines; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	// Wait bounds how long an empty read polls for new lines.
	Wait time.Duration
}

// FileBatch is the result of one read.
type FileBatch struct {
	Events []logging.LogEvent
	// Offset is where the next read should resume.
	Offset int64
}

// TailFile reads events from a daily log file. A missing file is an empty
// batch at offset zero, so callers can poll before the server first logs.
func TailFile(ctx context.Context, path string, opts TailOptions) (FileBatch, error) {
	batch := FileBatch{Offset: max(opts.Offset, 0)}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			batch.Offset = 0
			if opts.Wait > 0 {
				err = sleepContext(ctx, min(opts.Wait, time.Second))
			}
			return batch, err
		}
		return batch, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return batch, fmt.Errorf("log path %q is a directory", path)
	}

	var lines []string
	if opts.Offset < 0 {
		lines, batch.Offset, err = lastLines(path, opts.Limit)
	} else {
		start := opts.Offset
		if start > info.Size() {
			// truncated or rotated in place
			start = 0
		}
		lines, batch.Offset, err = linesFrom(path, start)
	}
	if err != nil {
		return batch, err
	}
	if len(lines) == 0 && opts.Wait > 0 {
		lines, batch.Offset, err = pollLines(ctx, path, batch.Offset, opts.Wait)
		if err != nil {
			return batch, err
		}
	}
	batch.Events = parseLines(lines)
	return batch, nil
}

// ParseLine decodes one JSON log line. Attributes outside the standard set
// are flattened into Fields.
func ParseLine(line string) (logging.LogEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return logging.LogEvent{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return logging.LogEvent{}, false
	}
	evt := logging.LogEvent{
		Level:         strings.ToLower(stringField(raw, "level")),
		Message:       stringField(raw, "msg"),
		Component:     stringField(raw, logging.FieldComponent),
		VideoID:       stringField(raw, logging.FieldVideoID),
		RequestID:     stringField(raw, logging.FieldRequestID),
		CorrelationID: stringField(raw, logging.FieldCorrelationID),
	}
	if ts, err := time.Parse(time.RFC3339Nano, stringField(raw, "ts")); err == nil {
		evt.Timestamp = ts
	}
	for key, value := range raw {
		switch key {
		case "ts", "level", "msg", "source",
			logging.FieldComponent, logging.FieldVideoID,
			logging.FieldRequestID, logging.FieldCorrelationID:
			continue
		}
		if evt.Fields == nil {
			evt.Fields = make(map[string]string)
		}
		evt.Fields[key] = fieldString(value)
	}
	return evt, true
}

func parseLines(lines []string) []logging.LogEvent {
	events := make([]logging.LogEvent, 0, len(lines))
	for _, line := range lines {
		if evt, ok := ParseLine(line); ok {
			events = append(events, evt)
		}
	}
	return events
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func fieldString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

// lastLines keeps a ring of the final limit lines so memory stays bounded on
// large files.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		count = min(count+1, limit)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count < limit {
		copy(lines, ring[:count])
	} else {
		for i := range lines {
			lines[i] = ring[(next+i)%limit]
		}
	}
	return lines, end, nil
}

// linesFrom reads complete lines after offset. A trailing partial line is
// left for the next read.
func linesFrom(path string, offset int64) ([]string, int64, error) {
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
	pos := offset
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, pos, nil
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(chunk))
		lines = append(lines, strings.TrimRight(chunk, "\r\n"))
	}
}

func pollLines(ctx context.Context, path string, offset int64, wait time.Duration) ([]string, int64, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, offset, ctx.Err()
		case <-ticker.C:
		}
		lines, next, err := linesFrom(path, offset)
		if err != nil {
			return nil, offset, err
		}
		if len(lines) > 0 || !time.Now().Before(deadline) {
			return lines, next, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
