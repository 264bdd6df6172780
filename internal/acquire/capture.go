package acquire

import (
	"context"
	"errors"
	"sync"
	"time"

	"vidseg/internal/language"
	"vidseg/internal/transcript"
)

// DefaultCaptureTTL bounds how long pushed captures stay usable.
const DefaultCaptureTTL = 30 * time.Minute

// ErrNoCapture is returned by the intercepted strategy when nothing was pushed
// for the video.
var ErrNoCapture = errors.New("no intercepted transcript")

type capture struct {
	segments transcript.Transcript
	stored   time.Time
}

// CaptureBuffer holds transcripts pushed by a page-side companion that saw
// the caption traffic. Safe for concurrent use.
type CaptureBuffer struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]map[string]capture
}

// NewCaptureBuffer builds a buffer; ttl <= 0 selects DefaultCaptureTTL.
func NewCaptureBuffer(ttl time.Duration) *CaptureBuffer {
	if ttl <= 0 {
		ttl = DefaultCaptureTTL
	}
	return &CaptureBuffer{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]capture),
	}
}

// Put stores segments for a video and language, replacing earlier captures.
func (b *CaptureBuffer) Put(videoID, lang string, segs transcript.Transcript) {
	if videoID == "" || len(segs) == 0 {
		return
	}
	lang = language.Normalize(lang)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	byLang := b.entries[videoID]
	if byLang == nil {
		byLang = make(map[string]capture)
		b.entries[videoID] = byLang
	}
	byLang[lang] = capture{segments: segs.Sorted(), stored: b.now()}
}

// Get returns the capture for lang, falling back to any capture of the video.
func (b *CaptureBuffer) Get(videoID, lang string) (transcript.Transcript, bool) {
	lang = language.Normalize(lang)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	byLang := b.entries[videoID]
	if len(byLang) == 0 {
		return nil, false
	}
	if c, ok := byLang[lang]; ok {
		return c.segments, true
	}
	var newest capture
	for _, c := range byLang {
		if c.stored.After(newest.stored) {
			newest = c
		}
	}
	return newest.segments, true
}

// Len counts buffered videos.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	return len(b.entries)
}

func (b *CaptureBuffer) pruneLocked() {
	cutoff := b.now().Add(-b.ttl)
	for id, byLang := range b.entries {
		for lang, c := range byLang {
			if c.stored.Before(cutoff) {
				delete(byLang, lang)
			}
		}
		if len(byLang) == 0 {
			delete(b.entries, id)
		}
	}
}

// Intercepted reads from the capture buffer.
func Intercepted(buf *CaptureBuffer) Strategy {
	return Strategy{
		Name:     "intercepted",
		Priority: PriorityIntercepted,
		Execute: func(_ context.Context, videoID, lang string) (transcript.Transcript, error) {
			if buf == nil {
				return nil, ErrNoCapture
			}
			segs, ok := buf.Get(videoID, lang)
			if !ok {
				return nil, ErrNoCapture
			}
			return segs, nil
		},
	}
}
