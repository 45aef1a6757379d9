// Package httpmsg implements a minimal, size-bounded HTTP/1.1 request and
// response header parser/builder — just enough to negotiate a WebSocket
// upgrade on either side of the connection. It is not a general HTTP
// parser: no chunked transfer-encoding, no trailers, no pipelining.
package httpmsg

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/wsendpoint/internal/pbuffer"
)

// MaxHeaderBytes is the hard cap on the request/status line plus headers.
const MaxHeaderBytes = 16 * 1024

// dateLayout is the RFC 1123 layout in GMT, used for the injected Date
// header on responses that don't already carry one.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// HeaderTooLargeError is returned when the header block cap is reached
// without finding the CRLF CRLF terminator.
type HeaderTooLargeError struct {
	Actual int
	Max    int
}

func (e *HeaderTooLargeError) Error() string {
	return fmt.Sprintf("httpmsg: header block too large: %d bytes read, max %d", e.Actual, e.Max)
}

// deadliner is implemented by net.Conn and anything else that supports an
// idle read deadline for the keep-alive case.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadOptions bounds a single ReadRequest/ReadResponse call.
type ReadOptions struct {
	// MaxHeaderBytes overrides MaxHeaderBytes when non-zero.
	MaxHeaderBytes int

	// IdleTimeout, when non-zero and r implements deadliner, bounds only
	// the wait for the very first byte (the keep-alive idle wait); once
	// any byte has arrived the deadline is cleared for the rest of the
	// header read.
	IdleTimeout time.Duration
}

func (o ReadOptions) maxHeaderBytes() int {
	if o.MaxHeaderBytes > 0 {
		return o.MaxHeaderBytes
	}
	return MaxHeaderBytes
}

// Request is a parsed or to-be-written HTTP/1.1 request.
type Request struct {
	Method  string
	Target  string
	Proto   string
	Headers *Headers
	Body    io.ReadSeeker
}

// Response is a parsed or to-be-written HTTP/1.1 response.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Headers    *Headers
	Body       io.ReadSeeker
}

// readHeaderBlock reads byte-by-byte up to the CRLF CRLF terminator using a
// 4-state automaton over \r \n \r \n, enforcing the MaxHeaderBytes cap.
// The returned slice includes everything up to and including the final
// terminator.
func readHeaderBlock(r io.Reader, opts ReadOptions) ([]byte, error) {
	max := opts.maxHeaderBytes()
	buf := make([]byte, 0, 512)
	one := make([]byte, 1)

	var dl deadliner
	if opts.IdleTimeout > 0 {
		dl, _ = r.(deadliner)
	}

	state := 0 // 0: nothing matched, 1: \r, 2: \r\n, 3: \r\n\r, 4: done
	first := true
	for {
		if dl != nil && first {
			_ = dl.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		}
		n, err := r.Read(one)
		if dl != nil && first {
			_ = dl.SetReadDeadline(time.Time{})
			first = false
		}
		if n == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}

		b := one[0]
		if len(buf) >= max {
			return nil, &HeaderTooLargeError{Actual: len(buf) + 1, Max: max}
		}
		buf = append(buf, b)

		switch state {
		case 0:
			if b == '\r' {
				state = 1
			}
		case 1:
			if b == '\n' {
				state = 2
			} else if b != '\r' {
				state = 0
			}
		case 2:
			if b == '\r' {
				state = 3
			} else {
				state = 0
			}
		case 3:
			if b == '\n' {
				state = 4
			} else if b == '\r' {
				state = 1
			} else {
				state = 0
			}
		}

		if state == 4 {
			return buf, nil
		}
	}
}

// splitLines splits a header block (terminated by the final blank line)
// into the start line and the raw header lines, applying multi-line
// continuation: a line beginning with space or tab is appended to the
// previous header's value with a single separating space.
func splitLines(block []byte) (startLine string, headerLines []string) {
	raw := strings.Split(strings.TrimSuffix(string(block), "\r\n\r\n"), "\r\n")
	if len(raw) == 0 {
		return "", nil
	}
	startLine = raw[0]
	for _, line := range raw[1:] {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(headerLines) > 0 {
			headerLines[len(headerLines)-1] += " " + strings.TrimSpace(line)
			continue
		}
		headerLines = append(headerLines, line)
	}
	return startLine, headerLines
}

func parseHeaderLines(lines []string) *Headers {
	h := NewHeaders()
	for _, line := range lines {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		h.Add(name, value)
	}
	return h
}

// readBody reads the Content-Length body, if any, into a pooled buffer
// exposed as a rewindable stream. A premature EOF exposes the partial body
// without returning an error.
func readBody(r io.Reader, h *Headers) io.ReadSeeker {
	clStr := h.Get("Content-Length")
	if clStr == "" {
		return nil
	}
	cl, err := strconv.Atoi(clStr)
	if err != nil || cl <= 0 {
		return nil
	}

	buf := pbuffer.New(cl)
	region, err := buf.GetFreeRegion(cl)
	if err != nil {
		return nil
	}
	n, _ := io.ReadFull(r, region[:cl])
	_ = buf.Advance(n) // partial body on premature EOF is exposed, not an error
	_, _ = buf.Seek(0, io.SeekStart)
	return buf
}

// ReadRequest parses a request line and headers (and optional body) from r.
func ReadRequest(r io.Reader, opts ReadOptions) (*Request, error) {
	block, err := readHeaderBlock(r, opts)
	if err != nil {
		return nil, err
	}
	startLine, headerLines := splitLines(block)
	parts := strings.SplitN(startLine, " ", 3)
	if len(parts) != 3 {
		return nil, errors.New("httpmsg: malformed request line")
	}
	h := parseHeaderLines(headerLines)
	return &Request{
		Method:  parts[0],
		Target:  parts[1],
		Proto:   parts[2],
		Headers: h,
		Body:    readBody(r, h),
	}, nil
}

// ReadResponse parses a status line and headers (and optional body) from r.
func ReadResponse(r io.Reader, opts ReadOptions) (*Response, error) {
	block, err := readHeaderBlock(r, opts)
	if err != nil {
		return nil, err
	}
	startLine, headerLines := splitLines(block)
	parts := strings.SplitN(startLine, " ", 3)
	if len(parts) < 2 {
		return nil, errors.New("httpmsg: malformed status line")
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.New("httpmsg: malformed status code")
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	h := parseHeaderLines(headerLines)
	return &Response{
		Proto:      parts[0],
		StatusCode: code,
		Reason:     reason,
		Headers:    h,
		Body:       readBody(r, h),
	}, nil
}

// WriteRequest serializes req to w: request line, headers, blank line, body.
func WriteRequest(w io.Writer, req *Request) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\r\n", req.Method, req.Target, req.Proto)
	writeHeaders(&b, req.Headers)
	b.WriteString("\r\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return writeBody(w, req.Body)
}

// WriteResponse serializes resp to w: status line, headers, blank line,
// body. If resp.Headers lacks a Date header, the current RFC 1123 GMT date
// is injected; an existing Date header is never overwritten.
func WriteResponse(w io.Writer, resp *Response) error {
	if resp.Headers == nil {
		resp.Headers = NewHeaders()
	}
	if !resp.Headers.Has("Date") {
		resp.Headers.Set("Date", time.Now().UTC().Format(dateLayout))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %s\r\n", resp.Proto, resp.StatusCode, resp.Reason)
	writeHeaders(&b, resp.Headers)
	b.WriteString("\r\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return writeBody(w, resp.Body)
}

func writeHeaders(b *strings.Builder, h *Headers) {
	if h == nil {
		return
	}
	for _, name := range h.Names() {
		for _, v := range h.Values(name) {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
}

func writeBody(w io.Writer, body io.ReadSeeker) error {
	if body == nil {
		return nil
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(w, body)
	return err
}
