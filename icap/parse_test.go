package icap

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestParseRequestLineOptions(t *testing.T) {
	raw := "OPTIONS icap://h/reqmod ICAP/1.0\r\n" +
		"Host: h\r\n" +
		"Encapsulated: null-body=0\r\n" +
		"\r\n"

	h, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Method != MethodOptions {
		t.Errorf("method = %q, want OPTIONS", h.Method)
	}
	if h.URI != "icap://h/reqmod" {
		t.Errorf("uri = %q", h.URI)
	}
	if h.Version != "1.0" {
		t.Errorf("version = %q", h.Version)
	}
	if len(h.Encapsulated) != 1 || h.Encapsulated[0].Section != SectionNullBody {
		t.Errorf("encapsulated = %+v", h.Encapsulated)
	}
}

func TestParseBadVersion(t *testing.T) {
	raw := "REQMOD icap://h/ ICAP/2.0\r\n\r\n"
	_, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Status != StatusVersionNotSupported {
		t.Errorf("status = %d, want %d", pe.Status, StatusVersionNotSupported)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	raw := "REQMOD\r\n\r\n"
	_, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Status != StatusBadRequest {
		t.Fatalf("expected 400 ProtocolError, got %v", err)
	}
}

func TestParseHeaderCapExceeded(t *testing.T) {
	var b strings.Builder
	b.WriteString("REQMOD icap://h/ ICAP/1.0\r\n")
	for i := 0; i < 2000; i++ {
		b.WriteString("X-Pad: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\r\n")
	}
	b.WriteString("\r\n")

	_, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(b.String())), DefaultMaxHeaderBytes)
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Status != StatusRequestTooLarge {
		t.Fatalf("expected 414 ProtocolError, got %v", err)
	}
}

func TestParsePreviewAndAllow204(t *testing.T) {
	raw := "REQMOD icap://h/m ICAP/1.0\r\n" +
		"Host: h\r\n" +
		"Allow: 204\r\n" +
		"Preview: 10\r\n" +
		"Encapsulated: req-hdr=0, req-body=20\r\n" +
		"\r\n"
	h, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Allow204 {
		t.Error("Allow204 = false, want true")
	}
	if h.Preview == nil || *h.Preview != 10 {
		t.Errorf("preview = %v, want 10", h.Preview)
	}
}

func TestParseObsFold(t *testing.T) {
	raw := "REQMOD icap://h/m ICAP/1.0\r\n" +
		"X-Folded: first\r\n" +
		" continued\r\n" +
		"Encapsulated: null-body=0\r\n" +
		"\r\n"
	h, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.Header.Get("X-Folded"); got != "first continued" {
		t.Errorf("X-Folded = %q", got)
	}
}

func TestParseUnknownEncapsulatedSection(t *testing.T) {
	raw := "REQMOD icap://h/m ICAP/1.0\r\n" +
		"Encapsulated: bogus-section=0\r\n" +
		"\r\n"
	_, err := ParseRequestHeader(bufio.NewReader(strings.NewReader(raw)), 0)
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Status != StatusBadRequest {
		t.Fatalf("expected 400 ProtocolError, got %v", err)
	}
}

func TestParseEOFOnCleanClose(t *testing.T) {
	_, err := ParseRequestHeader(bufio.NewReader(strings.NewReader("")), 0)
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF on empty input", err)
	}
}
