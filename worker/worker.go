// Package worker implements the per-connection serve loop each worker
// process runs. Where the original process model forks N worker processes that each call
// accept() directly on an inherited listen fd and the kernel load-balances
// between them, this rewrite keeps exactly that shape: one Worker per
// process, one real OS-level accept loop, no in-process connection
// multiplexing. The manager package decides how many such processes to
// keep alive; Worker only knows how to run one of them.
//
// Absorbs and rewrites the conn/Server serve loop from
// intra-sh-icap/server.go: the panic-recovery wrapper, the per-request
// SetReadDeadline, and the accept-error retry all come from there, adapted
// from a goroutine-per-connection net/http-style server to the
// pre-fork model's one-worker-one-connection-at-a-time discipline.
package worker

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net"
	"runtime/debug"
	"time"

	"github.com/bitz-icapd/icapd/handler"
	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/internal/sockio"
)

// Config bounds a Worker's lifetime and per-connection behavior.
type Config struct {
	// MaxRequests is the number of requests this worker serves, across all
	// connections, before it exits cleanly so the manager can respawn a
	// fresh process. Zero means unbounded.
	MaxRequests int
	// ReadTimeout is the per-request inactivity deadline: a connection idle
	// longer than this is closed with a 408. Zero selects the 30-second
	// default.
	ReadTimeout time.Duration
	// MaxHeaderBytes caps the ICAP request-line + header block.
	MaxHeaderBytes int
	// ISTag is the process-level opaque cache-validation token every
	// response carries.
	ISTag string
	// Logger receives one line per accepted connection and per error; nil
	// disables logging.
	Logger *log.Logger
}

// Worker owns one listening socket and serves connections from it
// sequentially within this process until Config.MaxRequests is reached or
// Shutdown is called.
type Worker struct {
	ln      *sockio.Listener
	h       *handler.Handler
	cfg     Config
	served  int
	done    chan struct{}
	closing bool
}

// New builds a Worker accepting on ln and dispatching to h.
func New(ln *sockio.Listener, h *handler.Handler, cfg Config) *Worker {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = icap.DefaultMaxHeaderBytes
	}
	return &Worker{ln: ln, h: h, cfg: cfg, done: make(chan struct{})}
}

// Serve runs the accept loop until Shutdown is called, the listener is
// closed, or MaxRequests is reached. It returns nil on a clean exit driven
// by either cause: the worker exits cleanly so its manager can respawn it.
func (w *Worker) Serve() error {
	for {
		select {
		case <-w.done:
			return nil
		default:
		}

		conn, err := w.ln.Accept()
		if err != nil {
			if w.closing {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		w.logf("accepted connection from %s", conn.RemoteAddr())
		exhausted := w.serveConn(conn)
		if exhausted {
			return nil
		}
	}
}

// Shutdown stops the accept loop. In-flight connections are not
// interrupted; cancellation is by process signal (the manager kills the
// process), not by a graceful in-process drain.
func (w *Worker) Shutdown() {
	w.closing = true
	close(w.done)
	w.ln.Close()
}

// serveConn drives one connection's request/response loop until the peer
// closes, the server decides not to keep-alive, or MaxRequests is
// exhausted. It returns true once MaxRequests has been reached, telling
// Serve to stop accepting further connections.
func (w *Worker) serveConn(conn *sockio.Conn) (exhausted bool) {
	defer func() {
		if r := recover(); r != nil {
			var buf bytes.Buffer
			fmt.Fprintf(&buf, "worker: panic serving %v: %v\n", conn.RemoteAddr(), r)
			buf.Write(debug.Stack())
			w.logf("%s", buf.String())
		}
		conn.Close()
	}()

	for {
		if w.cfg.ReadTimeout > 0 {
			conn.SetReadTimeout(w.cfg.ReadTimeout)
		}

		keepAlive, err := w.serveOneRequest(conn)
		if err != nil {
			w.logf("request error from %s: %v", conn.RemoteAddr(), err)
			return false
		}

		w.served++
		if w.cfg.MaxRequests > 0 && w.served >= w.cfg.MaxRequests {
			return true
		}
		if !keepAlive {
			return false
		}
	}
}

// serveOneRequest parses one request, dispatches it, writes the response,
// and reports whether the connection should stay open for another request.
func (w *Worker) serveOneRequest(conn *sockio.Conn) (keepAlive bool, err error) {
	br := conn.Reader()
	req, err := icap.ReadRequest(br, w.cfg.MaxHeaderBytes, conn.RemoteAddr().String())
	if err != nil {
		if err == io.EOF {
			return false, nil // peer closed cleanly between requests
		}
		w.writeParseError(conn, err)
		return false, nil
	}

	resp := w.h.Serve(req, conn)
	if err := resp.WriteTo(conn, w.cfg.ISTag, w.h.ServerToken()); err != nil {
		return false, err
	}

	return wantsKeepAlive(req.Header.Header), nil
}

// writeParseError translates a parse-time error into the matching ICAP
// status and writes it, best-effort, before the connection is closed.
func (w *Worker) writeParseError(conn *sockio.Conn, err error) {
	status := icap.StatusBadRequest
	if pe, ok := err.(*icap.ProtocolError); ok {
		status = pe.Status
	} else if sockio.IsTimeout(err) {
		status = icap.StatusRequestTimeout
	}
	resp := icap.NewResponse(status)
	resp.WriteTo(conn, w.cfg.ISTag, w.h.ServerToken())
}

// wantsKeepAlive reports whether the connection should be reused for
// another request: false only if the client explicitly asked for
// Connection: close.
func wantsKeepAlive(h *icap.Header) bool {
	if h == nil {
		return true
	}
	for _, v := range h.Values("Connection") {
		if eqFold(v, "close") {
			return false
		}
	}
	return true
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (w *Worker) logf(format string, args ...interface{}) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Printf(format, args...)
	}
}
