// Package ui provides terminal UI helpers.
package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The model replies with a pretty-printed JSON object, so the content
// field's value sits between these exact byte sequences on the wire.
// They are load-bearing: a change in the remote formatting (e.g. no
// newline after the closing comma) silently breaks extraction.
const (
	ContentStartMarker = `"content": "`
	ContentEndMarker   = "\",\n"
)

// ContentPrinter streams the value of one JSON string field to w as it
// arrives, without waiting for — or parsing — the full document. It
// watches for the start marker, prints unescaped value bytes as soon as
// they are known not to be part of the end marker, and stops at the end
// marker. Incoming chunks are accumulated so markers and escape
// sequences split across chunk boundaries are handled correctly.
//
// It has no network or retry awareness: it is a replayable state
// machine over text, and printing the same logical text produces the
// same output no matter how it is fragmented.
type ContentPrinter struct {
	w           io.Writer
	startMarker string
	endMarker   string

	emitting bool
	buf      string
	printed  bool
	finished bool
}

// NewContentPrinter returns a printer for the canonical wire markers.
func NewContentPrinter(w io.Writer) *ContentPrinter {
	return NewContentPrinterMarkers(w, ContentStartMarker, ContentEndMarker)
}

// NewContentPrinterMarkers returns a printer with explicit markers. The
// markers are configuration, not assumption: they must match the field
// layout the decoder expects, and tests pin the canonical bytes.
func NewContentPrinterMarkers(w io.Writer, start, end string) *ContentPrinter {
	return &ContentPrinter{w: w, startMarker: start, endMarker: end}
}

// Feed appends one chunk of streamed text and prints whatever part of
// the field value it can now safely resolve.
func (p *ContentPrinter) Feed(chunk string) {
	p.buf += chunk
	for {
		if !p.emitting {
			i := strings.Index(p.buf, p.startMarker)
			if i < 0 {
				// The start marker may be split across chunks, so the
				// whole buffer stays.
				return
			}
			p.buf = p.buf[i+len(p.startMarker):]
			p.emitting = true
		}

		if j := strings.Index(p.buf, p.endMarker); j >= 0 {
			p.emit(p.buf[:j])
			p.buf = p.buf[j+len(p.endMarker):]
			p.emitting = false
			continue
		}

		// The end marker may be split across chunks: hold back a
		// trailing strict prefix of it, longest match first. A lone
		// trailing backslash is held back too — it may be the first
		// half of an escape sequence whose second byte hasn't arrived
		// yet, or be escaping the withheld quote.
		cut := len(p.buf)
		if k := p.partialEndIndex(); k >= 0 {
			cut = k
		}
		if strings.HasSuffix(p.buf[:cut], `\`) {
			cut--
		}
		p.emit(p.buf[:cut])
		p.buf = p.buf[cut:]
		return
	}
}

// Finish prints a trailing newline if anything was printed this turn,
// so the next prompt starts on a fresh line. Safe to call more than
// once; only the first call has an effect.
func (p *ContentPrinter) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	if p.printed {
		fmt.Fprintln(p.w)
	}
}

// partialEndIndex returns the offset where a trailing strict prefix of
// the end marker begins, or -1 if the buffer doesn't end in one.
func (p *ContentPrinter) partialEndIndex() int {
	for n := len(p.endMarker) - 1; n > 0; n-- {
		if strings.HasSuffix(p.buf, p.endMarker[:n]) {
			return len(p.buf) - n
		}
	}
	return -1
}

// emit writes s with JSON-style escapes decoded. If the text doesn't
// decode cleanly it is written raw — visible progress beats perfect
// fidelity here.
func (p *ContentPrinter) emit(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.w, unescape(s))
	p.printed = true
}

func unescape(s string) string {
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return unquoted
}
