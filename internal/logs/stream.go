package logs

import (
	"context"
	"errors"
	"time"

	"vidseg/internal/logging"
)

// Query selects which events Follow emits.
type Query struct {
	// Lines is the size of the initial backlog.
	Lines     int
	Follow    bool
	VideoID   string
	Component string
}

// Reader reads events from the API when a server answers and otherwise from
// the daily file in LogDir.
type Reader struct {
	Client *StreamClient
	LogDir string
	// Now picks the daily file; defaults to time.Now.
	Now func() time.Time
	// Wait bounds each follow poll of the file.
	Wait time.Duration
}

// Source reports where events came from.
type Source string

const (
	SourceAPI  Source = "api"
	SourceFile Source = "file"
)

// Read emits matching events until the backlog is exhausted, or until ctx
// ends when q.Follow is set.
func (r Reader) Read(ctx context.Context, q Query, emit func(logging.LogEvent)) (Source, error) {
	if r.Client != nil {
		err := r.readAPI(ctx, q, emit)
		if err == nil || !IsAPIUnavailable(err) {
			return SourceAPI, ignoreCancel(err)
		}
	}
	return SourceFile, ignoreCancel(r.readFile(ctx, q, emit))
}

func (r Reader) readAPI(ctx context.Context, q Query, emit func(logging.LogEvent)) error {
	resp, err := r.Client.Fetch(ctx, StreamQuery{
		Limit:     q.Lines,
		Tail:      true,
		VideoID:   q.VideoID,
		Component: q.Component,
	})
	if err != nil {
		return err
	}
	for _, evt := range resp.Events {
		emit(evt)
	}
	next := resp.Next
	for q.Follow {
		resp, err := r.Client.Fetch(ctx, StreamQuery{
			Since:     next,
			Follow:    true,
			VideoID:   q.VideoID,
			Component: q.Component,
		})
		if err != nil {
			return err
		}
		for _, evt := range resp.Events {
			emit(evt)
		}
		if resp.Next > next {
			next = resp.Next
		}
	}
	return nil
}

func (r Reader) readFile(ctx context.Context, q Query, emit func(logging.LogEvent)) error {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	wait := r.Wait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	path := logging.DailyLogPath(r.LogDir, now())

	// The file holds every component, so the backlog scans a wider window
	// when filtering and trims afterwards.
	limit := q.Lines
	if q.VideoID != "" || q.Component != "" {
		limit *= 20
	}
	batch, err := TailFile(ctx, path, TailOptions{Offset: -1, Limit: limit})
	if err != nil {
		return err
	}
	events := logging.Filter(batch.Events, q.VideoID, q.Component)
	if q.Lines > 0 && len(events) > q.Lines {
		events = events[len(events)-q.Lines:]
	}
	for _, evt := range events {
		emit(evt)
	}

	offset := batch.Offset
	for q.Follow {
		if current := logging.DailyLogPath(r.LogDir, now()); current != path {
			path, offset = current, 0
		}
		batch, err := TailFile(ctx, path, TailOptions{Offset: offset, Wait: wait})
		if err != nil {
			return err
		}
		offset = batch.Offset
		for _, evt := range logging.Filter(batch.Events, q.VideoID, q.Component) {
			emit(evt)
		}
	}
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
