package icap

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxHeaderBytes bounds the ICAP request-line + header block. A
// block larger than this yields a 414 ProtocolError.
const DefaultMaxHeaderBytes = 8 * 1024

// ParseRequestHeader reads one ICAP request line and header block from br,
// terminated by a blank line, and decodes the well-known Encapsulated,
// Preview and Allow headers. It returns io.EOF if the peer closed the
// connection before sending anything (a clean close, not an error worth
// responding to).
func ParseRequestHeader(br *bufio.Reader, maxHeaderBytes int) (*RequestHeader, error) {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	raw, err := readHeaderBlock(br, maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	lines := foldLines(raw)
	if len(lines) == 0 {
		return nil, NewProtocolError(StatusBadRequest, "empty request")
	}

	method, uri, version, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	h := &RequestHeader{Method: method, URI: uri, Version: version, Header: NewHeader()}
	for _, line := range lines[1:] {
		name, value, ok := parseHeaderLine(line)
		if !ok {
			continue // lenient: ignore a malformed header line rather than fail the whole request
		}
		h.Header.Add(name, value)
	}

	if err := decodeWellKnownHeaders(h); err != nil {
		return nil, err
	}
	return h, nil
}

// readHeaderBlock reads bytes from br until a blank CRLF line terminates
// the header block, enforcing maxBytes as a hard cap (414 on overflow).
func readHeaderBlock(br *bufio.Reader, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := br.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF {
				if buf.Len() == 0 {
					return nil, io.EOF
				}
				return nil, &IoError{Err: io.ErrUnexpectedEOF}
			}
			return nil, &IoError{Err: err}
		}
		buf.Write(line)
		if buf.Len() > maxBytes {
			return nil, NewProtocolError(StatusRequestTooLarge, "header block exceeds cap")
		}
		if len(trimCRLF(line)) == 0 {
			break
		}
		if err != nil {
			return nil, &IoError{Err: err}
		}
	}
	return buf.Bytes(), nil
}

// foldLines splits a CRLF-delimited header block into logical header
// lines, joining obs-fold continuations (a line beginning with SP or HTAB)
// onto the previous line with a single space.
func foldLines(raw []byte) [][]byte {
	parts := bytes.Split(raw, []byte("\r\n"))
	var lines [][]byte
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		if len(lines) > 0 && (p[0] == ' ' || p[0] == '\t') {
			prev := lines[len(lines)-1]
			folded := append(append(append([]byte(nil), prev...), ' '), bytes.TrimLeft(p, " \t")...)
			lines[len(lines)-1] = folded
			continue
		}
		lines = append(lines, append([]byte(nil), p...))
	}
	return lines
}

func parseRequestLine(line []byte) (Method, string, string, error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return "", "", "", NewProtocolError(StatusBadRequest, "malformed request line")
	}
	method := Method(parts[0])
	uri := string(parts[1])
	versionToken := string(parts[2])

	if !strings.HasPrefix(versionToken, "ICAP/") {
		return "", "", "", NewProtocolError(StatusBadRequest, "malformed version token")
	}
	version := strings.TrimPrefix(versionToken, "ICAP/")

	switch method {
	case MethodOptions, MethodReqmod, MethodRespmod:
	default:
		return "", "", "", NewProtocolError(StatusBadRequest, "unsupported method "+string(method))
	}

	if version != "1.0" {
		return "", "", "", NewProtocolError(StatusVersionNotSupported, "unsupported ICAP version "+version)
	}

	return method, uri, "1.0", nil
}

func parseHeaderLine(line []byte) (name, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	name = string(bytes.TrimSpace(line[:idx]))
	value = string(bytes.TrimSpace(line[idx+1:]))
	return name, value, true
}

func decodeWellKnownHeaders(h *RequestHeader) error {
	if v := h.Header.Get("Encapsulated"); v != "" {
		entries, err := parseEncapsulated(v)
		if err != nil {
			return err
		}
		h.Encapsulated = entries
	}

	if v := h.Header.Get("Preview"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return NewProtocolError(StatusBadRequest, "invalid Preview value")
		}
		h.Preview = &n
	}

	if v := h.Header.Get("Allow"); v != "" {
		for _, tok := range strings.Split(v, ",") {
			if strings.TrimSpace(tok) == "204" {
				h.Allow204 = true
			}
		}
	}

	return nil
}

func parseEncapsulated(v string) ([]EncapsulatedEntry, error) {
	var entries []EncapsulatedEntry
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, NewProtocolError(StatusBadRequest, "malformed Encapsulated entry: "+part)
		}
		section := EncapsulatedSection(strings.TrimSpace(kv[0]))
		if !validEncapsulatedSections[section] {
			return nil, NewProtocolError(StatusBadRequest, "unknown Encapsulated section: "+string(section))
		}
		offset, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil || offset < 0 {
			return nil, NewProtocolError(StatusBadRequest, "invalid Encapsulated offset in: "+part)
		}
		entries = append(entries, EncapsulatedEntry{Section: section, Offset: offset})
	}
	return entries, nil
}
