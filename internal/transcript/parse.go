package transcript

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Format identifies a caption payload encoding.
type Format string

const (
	FormatXML   Format = "xml"
	FormatJSON3 Format = "json3"
	FormatVTT   Format = "vtt"
	FormatSRT   Format = "srt"
)

// ErrUnknownFormat is returned by Parse when the payload cannot be sniffed.
var ErrUnknownFormat = errors.New("transcript: unknown caption format")

// Detect guesses the payload format from its leading bytes.
func Detect(data []byte) (Format, bool) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	switch {
	case len(trimmed) == 0:
		return "", false
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return FormatVTT, true
	case trimmed[0] == '<':
		return FormatXML, true
	case trimmed[0] == '{':
		return FormatJSON3, true
	case srtTimingRE.Match(trimmed):
		return FormatSRT, true
	}
	return "", false
}

// Parse sniffs data and parses it with the matching decoder.
func Parse(data []byte) (Transcript, error) {
	format, ok := Detect(data)
	if !ok {
		return nil, ErrUnknownFormat
	}
	return ParseFormat(format, data)
}

// ParseFormat parses data as the given format.
func ParseFormat(format Format, data []byte) (Transcript, error) {
	switch format {
	case FormatXML:
		return ParseTimedText(data)
	case FormatJSON3:
		return ParseJSON3(data)
	case FormatVTT:
		return ParseVTT(string(data))
	case FormatSRT:
		return ParseSRT(string(data))
	default:
		return nil, fmt.Errorf("transcript: unsupported format %q", format)
	}
}

// timedText covers both srv3 (<timedtext><body><p t d>) and the legacy
// <transcript><text start dur> layout.
type timedText struct {
	XMLName xml.Name
	Body    struct {
		Paragraphs []timedParagraph `xml:"p"`
	} `xml:"body"`
	Texts []legacyText `xml:"text"`
}

type timedParagraph struct {
	Time     string      `xml:"t,attr"`
	Duration string      `xml:"d,attr"`
	Content  string      `xml:",chardata"`
	Words    []timedWord `xml:"s"`
}

type timedWord struct {
	Text string `xml:",chardata"`
}

type legacyText struct {
	Start    string `xml:"start,attr"`
	Duration string `xml:"dur,attr"`
	Content  string `xml:",chardata"`
}

// ParseTimedText parses timedtext XML in either srv3 or legacy layout.
func ParseTimedText(data []byte) (Transcript, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("transcript: decode timedtext: %w", err)
	}
	var out Transcript
	for _, p := range doc.Body.Paragraphs {
		text := p.Content
		if len(p.Words) > 0 {
			var b strings.Builder
			b.WriteString(p.Content)
			for _, w := range p.Words {
				b.WriteString(w.Text)
			}
			text = b.String()
		}
		text = CleanText(text)
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(p.Time, 64)
		dur, _ := strconv.ParseFloat(p.Duration, 64)
		out = append(out, Segment{Start: start / 1000, Duration: dur / 1000, Text: text})
	}
	for _, t := range doc.Texts {
		text := CleanText(t.Content)
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Duration, 64)
		out = append(out, Segment{Start: start, Duration: dur, Text: text})
	}
	return out.Sorted(), nil
}

type json3Doc struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 parses the json3 caption event stream.
func ParseJSON3(data []byte) (Transcript, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("transcript: decode json3: %w", err)
	}
	var out Transcript
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var b strings.Builder
		for _, s := range ev.Segs {
			b.WriteString(s.UTF8)
		}
		text := CleanText(b.String())
		if text == "" {
			continue
		}
		out = append(out, Segment{
			Start:    float64(ev.StartMs) / 1000,
			Duration: float64(ev.DurationMs) / 1000,
			Text:     text,
		})
	}
	return out.Sorted(), nil
}

var (
	srtTimingRE = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->`)
	vttTimingRE = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}\.\d{3})\s*-->\s*((?:\d+:)?\d{2}:\d{2}\.\d{3})`)
)

// ParseVTT parses WebVTT. Consecutive cues repeating the previous line, as
// rolling auto-captions do, are collapsed.
func ParseVTT(raw string) (Transcript, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var (
		out      Transcript
		cur      *Segment
		textBuf  []string
		prevText string
	)
	flush := func() {
		if cur == nil {
			return
		}
		text := CleanText(strings.Join(textBuf, " "))
		if text != "" && text != prevText {
			out = append(out, Segment{Start: cur.Start, Duration: cur.Duration, Text: text})
			prevText = text
		}
		cur = nil
		textBuf = nil
	}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if m := vttTimingRE.FindStringSubmatch(trimmed); m != nil {
			flush()
			start, err := parseClock(m[1])
			if err != nil {
				return nil, err
			}
			end, err := parseClock(m[2])
			if err != nil {
				return nil, err
			}
			cur = &Segment{Start: start, Duration: max(end-start, 0)}
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		if cur == nil {
			// header, metadata, NOTE blocks and cue identifiers
			continue
		}
		textBuf = append(textBuf, trimmed)
	}
	flush()
	if len(out) == 0 && !strings.HasPrefix(strings.TrimSpace(raw), "WEBVTT") {
		return nil, fmt.Errorf("transcript: not a webvtt payload")
	}
	return out.Sorted(), nil
}

// ParseSRT parses SubRip cues.
func ParseSRT(raw string) (Transcript, error) {
	content := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}
	var out Transcript
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue
		}
		parts := strings.SplitN(lines[timingIdx], "-->", 2)
		start, err := parseSRTTimestamp(parts[0])
		if err != nil {
			return nil, err
		}
		endField := strings.Fields(parts[1])
		if len(endField) == 0 {
			return nil, fmt.Errorf("transcript: missing cue end in %q", lines[timingIdx])
		}
		end, err := parseSRTTimestamp(endField[0])
		if err != nil {
			return nil, err
		}
		text := CleanText(strings.Join(lines[timingIdx+1:], " "))
		if text == "" {
			continue
		}
		out = append(out, Segment{Start: start, Duration: max(end-start, 0), Text: text})
	}
	return out.Sorted(), nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("transcript: empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("transcript: invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("transcript: invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("transcript: invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// parseClock accepts "hh:mm:ss.mmm" and "mm:ss.mmm".
func parseClock(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if strings.Count(value, ":") == 1 {
		value = "00:" + value
	}
	return parseSRTTimestamp(value)
}
