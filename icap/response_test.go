package icap

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestResponseWriteToNoContent(t *testing.T) {
	resp := NewResponse(StatusNoContent)
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf, `"tag1"`, "bitz-icapd/1.0"); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "ICAP/1.0 204 No Content\r\n") {
		t.Fatalf("status line wrong: %q", out)
	}
	if !strings.Contains(out, "ISTag: \"tag1\"\r\n") {
		t.Errorf("missing ISTag: %q", out)
	}
	if !strings.Contains(out, "Encapsulated: null-body=0\r\n") {
		t.Errorf("missing Encapsulated: %q", out)
	}
	if !strings.Contains(out, "Server: bitz-icapd/1.0\r\n") {
		t.Errorf("missing Server: %q", out)
	}
}

func TestResponseWriteToModifiedRequest(t *testing.T) {
	reqHdr := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	resp := NewModifiedRequest(reqHdr, []byte("payload"))

	var buf bytes.Buffer
	if err := resp.WriteTo(&buf, `"tag2"`, ""); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "ICAP/1.0 200 OK\r\n") {
		t.Fatalf("status line wrong: %q", out)
	}
	wantEncap := "Encapsulated: req-hdr=0, req-body=" + itoa(len(reqHdr)) + "\r\n"
	if !strings.Contains(out, wantEncap) {
		t.Errorf("encapsulated header = %q, want to contain %q", out, wantEncap)
	}
	if !strings.Contains(out, string(reqHdr)) {
		t.Error("missing req-hdr bytes")
	}

	br := bufio.NewReader(strings.NewReader(out))
	line, _ := br.ReadString('\n')
	if line != "ICAP/1.0 200 OK\r\n" {
		t.Errorf("status line = %q", line)
	}
}

func TestResponseWriteToForcesNullBodyOn204(t *testing.T) {
	resp := &Response{
		Header:   NewResponseHeader(StatusNoContent),
		Payload:  &Payload{ResHeader: []byte("leftover")},
		BodyKind: SectionResBody,
	}
	var buf bytes.Buffer
	if err := resp.WriteTo(&buf, `"tag3"`, ""); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), "Encapsulated: null-body=0\r\n") {
		t.Errorf("204 must force null-body, got %q", buf.String())
	}
}

func TestResponseWriteToChunkedBodyDecodes(t *testing.T) {
	resBody := []byte("adapted body content")
	resp := NewModifiedResponse([]byte("HTTP/1.1 200 OK\r\n\r\n"), resBody)

	var buf bytes.Buffer
	if err := resp.WriteTo(&buf, `"tag4"`, ""); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	idx := bytes.Index(buf.Bytes(), []byte("\r\n\r\n"))
	if idx < 0 {
		t.Fatal("no header/body separator found")
	}
	rest := buf.Bytes()[idx+4:]
	rest = rest[len("HTTP/1.1 200 OK\r\n\r\n"):]

	cr := newChunkedReader(bufio.NewReader(bytes.NewReader(rest)))
	got, err := io.ReadAll(cr)
	if err != nil && err != io.EOF {
		t.Fatalf("decode chunked body: %v", err)
	}
	if string(got) != string(resBody) {
		t.Errorf("decoded body = %q, want %q", got, resBody)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
