package handler

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/modifier"
)

type stubModifier struct {
	name         string
	previewResp  *icap.Response
	modifyResp   *icap.Response
	previewErr   error
	modifyErr    error
	previewCalls int
	modifyCalls  int
}

func (s *stubModifier) Name() string { return s.name }

func (s *stubModifier) Preview(req *icap.Request) (*icap.Response, error) {
	s.previewCalls++
	return s.previewResp, s.previewErr
}

func (s *stubModifier) Modify(req *icap.Request) (*icap.Response, error) {
	s.modifyCalls++
	return s.modifyResp, s.modifyErr
}

func parseReq(t *testing.T, raw string) *icap.Request {
	t.Helper()
	req, err := icap.ReadRequest(bufio.NewReader(strings.NewReader(raw)), 0, "127.0.0.1")
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	return req
}

func TestServeOptionsAnnouncesRegisteredMethods(t *testing.T) {
	reg := modifier.NewRegistry()
	reg.Register("REQMOD", "/filter", &stubModifier{name: "filter"})

	h := New(reg, modifier.DefaultOptionsConfig(), "bitz-icapd/1.0")
	req := parseReq(t, "OPTIONS icap://h/filter ICAP/1.0\r\nHost: h\r\nEncapsulated: null-body=0\r\n\r\n")

	resp := h.Serve(req, &bytes.Buffer{})
	if resp.Header.Status != icap.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Header.Status)
	}
	if got := resp.Header.Header.Get("Methods"); got != "REQMOD" {
		t.Errorf("Methods = %q", got)
	}
}

func TestServeReqmodUnknownPathIs404(t *testing.T) {
	reg := modifier.NewRegistry()
	reg.Register("REQMOD", "/filter", &stubModifier{name: "filter"})
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	req := parseReq(t, "REQMOD icap://h/other ICAP/1.0\r\nHost: h\r\nEncapsulated: null-body=0\r\n\r\n")
	resp := h.Serve(req, &bytes.Buffer{})
	if resp.Header.Status != icap.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Header.Status)
	}
}

func TestServeUnsupportedMethodIs405(t *testing.T) {
	reg := modifier.NewRegistry()
	reg.Register("REQMOD", "/filter", &stubModifier{name: "filter"})
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	req := parseReq(t, "RESPMOD icap://h/filter ICAP/1.0\r\nHost: h\r\nEncapsulated: null-body=0\r\n\r\n")
	resp := h.Serve(req, &bytes.Buffer{})
	if resp.Header.Status != icap.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.Header.Status)
	}
}

func TestServeReqmodAllDeclineWithAllow204(t *testing.T) {
	reg := modifier.NewRegistry()
	reg.Register("REQMOD", "/filter", &stubModifier{name: "filter", modifyResp: icap.NewResponse(icap.StatusNoContent)})
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	req := parseReq(t, "REQMOD icap://h/filter ICAP/1.0\r\nHost: h\r\nAllow: 204\r\nEncapsulated: null-body=0\r\n\r\n")
	resp := h.Serve(req, &bytes.Buffer{})
	if resp.Header.Status != icap.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.Header.Status)
	}
}

func TestServeReqmodFirstNonDeclineWins(t *testing.T) {
	reg := modifier.NewRegistry()
	final := icap.NewModifiedRequest([]byte("GET / HTTP/1.1\r\n\r\n"), []byte("x"))
	reg.Register("REQMOD", "/filter", &stubModifier{name: "a", modifyResp: final})
	reg.Register("REQMOD", "/filter", &stubModifier{name: "b", modifyResp: icap.NewResponse(icap.StatusNoContent)})
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	req := parseReq(t, "REQMOD icap://h/filter ICAP/1.0\r\nHost: h\r\nEncapsulated: null-body=0\r\n\r\n")
	resp := h.Serve(req, &bytes.Buffer{})
	if resp != final {
		t.Fatalf("expected first modifier's response to win")
	}
}

func TestServeReqmodPreviewAllDeclineIEOFShortCircuits(t *testing.T) {
	reg := modifier.NewRegistry()
	m := &stubModifier{name: "scan"}
	reg.Register("REQMOD", "/filter", m)
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	raw := "REQMOD icap://h/filter ICAP/1.0\r\n" +
		"Host: h\r\n" +
		"Allow: 204\r\n" +
		"Preview: 4\r\n" +
		"Encapsulated: req-hdr=0, req-body=18\r\n" +
		"\r\n" +
		"GET / HTTP/1.1\r\n\r\n" +
		"4\r\nabcd\r\n0; ieof\r\n\r\n" // preview carries the whole body
	req := parseReq(t, raw)

	var out bytes.Buffer
	resp := h.Serve(req, &out)

	if m.previewCalls != 1 {
		t.Errorf("preview calls = %d, want 1", m.previewCalls)
	}
	if m.modifyCalls != 0 {
		t.Errorf("modify calls = %d, want 0 (preview already saw the full body)", m.modifyCalls)
	}
	if strings.Contains(out.String(), "100 Continue") {
		t.Errorf("did not expect 100 Continue to be written, got %q", out.String())
	}
	if resp.Header.Status != icap.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.Header.Status)
	}
}

func TestServeReqmodEchoesBodyAlreadyReadByModifier(t *testing.T) {
	reg := modifier.NewRegistry()
	m := &bodyReadingModifier{}
	reg.Register("REQMOD", "/filter", m)
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	raw := "REQMOD icap://h/filter ICAP/1.0\r\n" +
		"Host: h\r\n" +
		"Encapsulated: req-hdr=0, req-body=18\r\n" +
		"\r\n" +
		"GET / HTTP/1.1\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"
	req := parseReq(t, raw)

	resp := h.Serve(req, &bytes.Buffer{})
	if resp.Header.Status != icap.StatusOK {
		t.Fatalf("status = %d, want 200 (echoed)", resp.Header.Status)
	}
	if got := string(resp.Payload.ReqBody); got != "hello" {
		t.Errorf("echoed body = %q, want %q (Modify already consumed FullBody once)", got, "hello")
	}
}

// bodyReadingModifier reads the full body during Modify, as a real adaptation
// module might (logging, hashing, scanning), and then declines — exercising
// that the echo fallback still sees the bytes afterwards.
type bodyReadingModifier struct{}

func (bodyReadingModifier) Name() string { return "body-reader" }

func (bodyReadingModifier) Preview(req *icap.Request) (*icap.Response, error) { return nil, nil }

func (bodyReadingModifier) Modify(req *icap.Request) (*icap.Response, error) {
	if _, err := req.FullBody(); err != nil {
		return nil, err
	}
	return nil, nil
}

func TestServeReqmodPreviewRequestsContinue(t *testing.T) {
	reg := modifier.NewRegistry()
	m := &stubModifier{name: "scan"}
	reg.Register("REQMOD", "/filter", m)
	h := New(reg, modifier.DefaultOptionsConfig(), "")

	raw := "REQMOD icap://h/filter ICAP/1.0\r\n" +
		"Host: h\r\n" +
		"Preview: 4\r\n" +
		"Encapsulated: req-hdr=0, req-body=18\r\n" +
		"\r\n" +
		"GET / HTTP/1.1\r\n\r\n" +
		"4\r\nabcd\r\n0\r\n\r\n" + // preview, not ieof
		"0\r\n\r\n" // continuation: empty body
	req := parseReq(t, raw)

	var out bytes.Buffer
	resp := h.Serve(req, &out)

	if m.previewCalls != 1 {
		t.Errorf("preview calls = %d, want 1", m.previewCalls)
	}
	if !strings.Contains(out.String(), "100 Continue") {
		t.Errorf("expected 100 Continue to be written, got %q", out.String())
	}
	if m.modifyCalls != 1 {
		t.Errorf("modify calls = %d, want 1", m.modifyCalls)
	}
	if resp.Header.Status != icap.StatusOK {
		t.Fatalf("status = %d, want 200 (echoed, since Allow: 204 was not announced)", resp.Header.Status)
	}
}
