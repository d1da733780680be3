package cmd

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luma/piconats/client"
	"github.com/luma/piconats/internal/env"
	"github.com/luma/piconats/transport"
)

const (
	flushTimeout = 5 * time.Second
	maxBackoff   = 30 * time.Second
)

var errFlushTimeout = errors.New("Server did not answer the flush in time")

// session drives a client over TCP from the command's goroutine, reconnecting when
// the connection is lost.
type session struct {
	conf *env.Config
	log  *zap.Logger
	c    *client.Client
	tcp  *transport.TCP
}

func dial(ctx context.Context, conf *env.Config, log *zap.Logger) (*session, error) {
	c, err := client.New(conf.ClientOptions(log.Named("client")))
	if err != nil {
		return nil, err
	}

	c.SetClock(transport.SystemClock)

	s := &session{conf: conf, log: log, c: c}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// connect dials the server and runs the handshake to completion.
func (s *session) connect(ctx context.Context) error {
	opts, err := s.conf.TransportOptions(s.log.Named("transport"))
	if err != nil {
		return err
	}

	if s.tcp != nil {
		s.tcp.Close()
	}

	tcp, err := transport.DialTCP(ctx, opts)
	if err != nil {
		return err
	}

	s.tcp = tcp
	s.c.SetTransport(tcp)
	if err := s.c.Handshake(); err != nil {
		tcp.Close()
		return err
	}

	for !s.c.IsConnected() {
		if err := ctx.Err(); err != nil {
			tcp.Close()
			return err
		}

		if err := s.c.Process(); err != nil {
			// the server hangs up right after an authorization -ERR
			if last := s.c.LastError(); client.CodeOf(last) == client.ErrAuthFailed {
				err = last
			}

			tcp.Close()
			return err
		}
	}

	info := s.c.ServerInfo()
	s.log.Info("Connected",
		zap.String("server", s.conf.Addr()),
		zap.String("server_id", info.ServerID),
		zap.String("version", info.Version),
	)

	return nil
}

// run polls the client until ctx is done or tick returns false. Lost connections
// are re-established with an exponential backoff.
func (s *session) run(ctx context.Context, tick func() bool) error {
	for ctx.Err() == nil {
		err := s.c.Process()
		if err == nil {
			err = s.c.CheckKeepalive()
		}

		if err != nil && needsReconnect(err) {
			s.log.Warn("Connection lost, reconnecting", zap.Error(err))
			if err := s.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		if err != nil {
			s.log.Warn("Client error", zap.Error(err))
		}

		if tick != nil && !tick() {
			return nil
		}
	}

	return nil
}

func (s *session) reconnect(ctx context.Context) error {
	backoff := time.Second

	for {
		err := s.connect(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}

		if client.CodeOf(err) == client.ErrAuthFailed {
			return err
		}

		s.log.Warn("Failed to reconnect", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// flush waits for the server to answer a PING, so everything sent before has been
// processed.
func (s *session) flush(ctx context.Context) error {
	before := s.c.Stats().PongsReceived

	if err := s.c.Flush(); err != nil {
		return err
	}
	return s.waitPong(ctx, before)
}

func (s *session) waitPong(ctx context.Context, before uint64) error {
	deadline := time.Now().Add(flushTimeout)

	for s.c.Stats().PongsReceived <= before {
		if time.Now().After(deadline) {
			return errFlushTimeout
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.c.Process(); err != nil {
			return err
		}
	}

	return nil
}

// drain unsubscribes, waits for what is in flight and closes.
func (s *session) drain(ctx context.Context) error {
	before := s.c.Stats().PongsReceived

	if err := s.c.Drain(); err != nil {
		s.log.Warn("Failed to drain", zap.Error(err))
		return s.c.Close()
	}

	if err := s.waitPong(ctx, before); err != nil {
		s.log.Warn("Failed to drain", zap.Error(err))
	}

	return s.c.Close()
}

func (s *session) close() {
	if err := s.c.Close(); err != nil {
		s.log.Warn("Failed to close", zap.Error(err))
	}
}

func needsReconnect(err error) bool {
	return client.IsSession(err) || client.CodeOf(err) == client.ErrBufferFull
}
