package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TCP is a Transport over a TCP, or TLS over TCP, connection.
//
// net.Conn has no non-blocking mode, so every Recv and Send is bounded by a short
// deadline instead. A deadline that expires is reported as "nothing right now".
//
// TCP is driven from a single goroutine, the same one that drives the client.
type TCP struct {
	conn      net.Conn
	connected bool

	addr         string
	pollTimeout  time.Duration
	writeTimeout time.Duration

	log   *zap.Logger
	trace bool
}

// DialTCP connects to the server described by options.
func DialTCP(ctx context.Context, options Options) (*TCP, error) {
	options.setDefaults()

	addr := net.JoinHostPort(options.Host, strconv.Itoa(options.Port))
	dialer := net.Dialer{Timeout: options.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to dial %s: %w", addr, err)
	}

	if options.TLS != nil {
		tlsConf := options.TLS.Clone()
		if tlsConf.ServerName == "" {
			tlsConf.ServerName = options.Host
		}

		tlsConn := tls.Client(conn, tlsConf)

		err := multierr.Append(
			tlsConn.SetDeadline(time.Now().Add(options.ConnectTimeout)),
			tlsConn.Handshake(),
		)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("Failed TLS handshake with %s: %w", addr, err)
		}

		conn = tlsConn
	}

	options.Log.Info("Connected", zap.String("addr", addr), zap.Bool("tls", options.TLS != nil))

	return NewTCP(conn, options), nil
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn, options Options) *TCP {
	options.setDefaults()

	return &TCP{
		conn:         conn,
		connected:    true,
		addr:         conn.RemoteAddr().String(),
		pollTimeout:  options.PollTimeout,
		writeTimeout: options.WriteTimeout,
		log:          options.Log,
		trace:        options.Trace,
	}
}

func (t *TCP) Send(p []byte) (int, error) {
	if !t.connected {
		return 0, ErrClosed
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return 0, t.fail(err)
	}

	n, err := t.conn.Write(p)
	if t.trace && n > 0 {
		t.log.Debug("SEND", zap.ByteString("data", p[:n]))
	}

	if err != nil {
		if isTimeout(err) {
			return n, nil
		}
		return n, t.fail(err)
	}

	return n, nil
}

func (t *TCP) Recv(p []byte) (int, error) {
	if !t.connected {
		return 0, ErrClosed
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(t.pollTimeout)); err != nil {
		return 0, t.fail(err)
	}

	n, err := t.conn.Read(p)
	if t.trace && n > 0 {
		t.log.Debug("RECV", zap.ByteString("data", p[:n]))
	}

	if err != nil {
		switch {
		case isTimeout(err):
			return n, nil

		case errors.Is(err, io.EOF):
			// Connected() reports the hang up on the next check
			t.log.Info("Server closed the connection", zap.String("addr", t.addr))
			t.connected = false
			return n, nil

		default:
			return n, t.fail(err)
		}
	}

	return n, nil
}

func (t *TCP) Connected() bool {
	return t.connected
}

// Close closes the connection. It is safe to call more than once.
func (t *TCP) Close() (err error) {
	if t.conn == nil {
		return nil
	}

	t.connected = false

	// unblock anything stuck in a deadline before closing
	err = multierr.Append(err, t.conn.SetDeadline(time.Now()))
	err = multierr.Append(err, t.conn.Close())
	t.conn = nil

	if err != nil {
		t.log.Warn("Transport did not close cleanly", zap.String("addr", t.addr), zap.Error(err))
	}

	return err
}

func (t *TCP) fail(err error) error {
	t.log.Warn("Transport failed", zap.String("addr", t.addr), zap.Error(err))
	t.connected = false
	return err
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

var _ Transport = (*TCP)(nil)
