package client

import (
	"bytes"
	"errors"
	"sync/atomic"

	"github.com/luma/piconats/protocol"
	"github.com/luma/piconats/transport"
	"go.uber.org/zap"
)

// Client is a NATS client that never blocks and doesn't allocate once a session is up.
// All of its buffers and tables are fixed arrays, so a Client is large and should be
// allocated once and reused. It must not be copied after Init.
//
// A Client is driven by a single goroutine. See Process for the loop it expects.
type Client struct {
	state   State
	lastErr error

	transport transport.Transport
	clock     transport.Clock
	onEvent   EventHandler

	parser protocol.Parser
	rbuf   protocol.Buffer
	tx     [TxBufferSize]byte

	subs    [MaxSubscriptions]subscription
	used    uint64
	nextSID uint16

	// every time below is in clock milliseconds
	handshakeStart uint32
	lastActivity   uint32
	lastPing       uint32
	pingsOut       int
	sessions       int

	inboxSeed uint32
	inboxSeq  uint32

	msg Msg

	info       protocol.ServerInfo
	maxPayload int

	stats Stats
	opts  Options
	log   *zap.Logger
}

// each client gets its own inbox prefix, even when they share a clock
var instances uint32

// New allocates a client and initialises it.
func New(opts Options) (*Client, error) {
	c := &Client{}
	if err := c.Init(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Init resets the client to a fresh, disconnected state and forgets its transport,
// clock, subscriptions and stats. The client's previous transport is not closed.
func (c *Client) Init(opts Options) error {
	if err := opts.setDefaults(); err != nil {
		return err
	}

	*c = Client{}

	c.opts = opts
	c.log = opts.Logger.Named("piconats")
	c.maxPayload = opts.MaxPayload
	c.parser.SetMaxPayload(opts.MaxPayload)
	c.inboxSeed = atomic.AddUint32(&instances, 1) * 0x9e3779b1

	return nil
}

func (c *Client) SetTransport(t transport.Transport) {
	c.transport = t
}

func (c *Client) SetClock(clock transport.Clock) {
	c.clock = clock
	if clock != nil {
		c.inboxSeed ^= clock.NowMillis()
	}
}

func (c *Client) SetEventHandler(fn EventHandler) {
	c.onEvent = fn
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

// LastError is the most recent error the client recorded, including server -ERRs
// that didn't fail the call that read them.
func (c *Client) LastError() error {
	return c.lastErr
}

func (c *Client) Stats() Stats {
	return c.stats
}

// ServerInfo is the last INFO received in this session.
func (c *Client) ServerInfo() protocol.ServerInfo {
	return c.info
}

// MaxPayload is the largest payload that can be published right now. It is the
// configured maximum unless the server announced a smaller one.
func (c *Client) MaxPayload() int {
	return c.maxPayload
}

// Handshake starts a session over the current transport. No I/O is done here, the
// session is negotiated by the following calls to Process.
//
// Handshake is also how the host reconnects after the session was lost. The
// subscriptions are kept and sent again once the new session is up.
func (c *Client) Handshake() error {
	if c.state == StateClosed {
		return c.setErr(opError(ErrInvalidState, "handshake", errors.New("client is closed")))
	}

	if c.transport == nil || c.clock == nil {
		return c.setErr(opError(ErrInvalidState, "handshake", errors.New("transport and clock are required")))
	}

	c.resetSession()

	now := c.clock.NowMillis()
	c.handshakeStart = now
	c.lastActivity = now
	c.lastPing = now

	c.lastErr = nil
	c.setState(StateWaitInfo)

	return nil
}

// Process makes whatever progress it can without blocking: one read from the
// transport, every operation that read completed, and the CONNECT once the server
// introduced itself. Call it from the host loop together with CheckKeepalive:
//
//   for {
//     if err := c.Process(); client.IsSession(err) {
//       reconnect()
//     }
//     c.CheckKeepalive()
//   }
func (c *Client) Process() error {
	switch c.state {
	case StateClosed:
		return ErrInvalidState
	case StateDisconnected:
		return ErrNotConnected
	}

	if c.transport == nil || c.clock == nil {
		return c.setErr(opError(ErrInvalidState, "process", errors.New("transport and clock are required")))
	}

	if !c.transport.Connected() {
		c.log.Warn("Transport disconnected", zap.Stringer("state", c.state))
		c.connectionLost()
		return c.setErr(ErrConnectionLost)
	}

	now := c.clock.NowMillis()

	if !c.rbuf.Full() {
		n, err := c.transport.Recv(c.rbuf.Free())
		if n > 0 {
			c.rbuf.Commit(n)
			c.lastActivity = now
		}

		if err != nil {
			return c.raise(opError(ErrIO, "recv", err))
		}
	}

	if err := c.parse(); err != nil {
		return c.raise(err)
	}

	switch c.state {
	case StateSendConnect:
		return c.sendConnect(now)

	case StateWaitInfo:
		if reached(now, c.handshakeStart, millis(c.opts.ConnectTimeout)) {
			c.log.Warn("Timed out waiting for server INFO", zap.Duration("timeout", c.opts.ConnectTimeout))
			c.connectionLost()
			return c.raise(opError(ErrTimeout, "handshake", errors.New("no INFO from server")))
		}
	}

	return nil
}

// Flush sends a PING. The server answers it once it has processed everything sent
// before, Stats().PongsReceived tells when that happened. Flush PINGs don't count
// toward MaxPingsOut.
func (c *Client) Flush() error {
	if !c.state.live() {
		return ErrNotConnected
	}

	return c.ping("flush")
}

// Drain unsubscribes everything and flushes, but keeps delivering messages that are
// already on their way. The host closes the client once it has seen the PONG.
func (c *Client) Drain() error {
	if c.state != StateConnected {
		return ErrNotConnected
	}

	c.setState(StateDraining)

	var first error
	for i := range c.subs {
		if !c.active(i) {
			continue
		}

		line := protocol.AppendUnsub(c.tx[:0], c.subs[i].sid, 0)
		if err := c.sendAll("drain", line); err != nil {
			c.log.Warn("Failed to unsubscribe while draining", zap.Uint16("sid", c.subs[i].sid), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}

	if first != nil {
		return c.raise(first)
	}

	return c.Flush()
}

// Close closes the transport and puts the client in StateClosed. It is safe to call
// more than once.
func (c *Client) Close() error {
	if c.state == StateClosed {
		return nil
	}

	var err error
	if c.transport != nil {
		err = c.transport.Close()
	}

	c.parser.Reset()
	c.rbuf.Reset()
	c.setState(StateClosed)

	if err != nil {
		return c.setErr(opError(ErrIO, "close", err))
	}
	return nil
}

// parse hands every complete operation in the receive buffer to handleOp.
func (c *Client) parse() error {
	for {
		op, err := c.parser.Next(&c.rbuf)
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				return opError(ErrBufferFull, "parse", err)
			}
			return opError(ErrProtocol, "parse", err)
		}

		if op.Kind == protocol.OpNone {
			return nil
		}

		err = c.handleOp(op)
		c.parser.Release(&c.rbuf)

		if err != nil {
			return err
		}

		// a handler may have closed the client
		if c.state == StateClosed || c.state == StateDisconnected {
			return nil
		}
	}
}

func (c *Client) handleOp(op protocol.Op) error {
	switch op.Kind {
	case protocol.OpMsg:
		c.deliver(op.Payload)

	case protocol.OpPing:
		return c.sendAll("pong", protocol.PongLine)

	case protocol.OpPong:
		c.stats.PongsReceived++
		if c.pingsOut > 0 {
			c.pingsOut--
		}

	case protocol.OpOK:

	case protocol.OpErr:
		c.serverError(op.Arg)

	case protocol.OpInfo:
		return c.updateInfo(op.Arg)
	}

	return nil
}

func (c *Client) updateInfo(arg []byte) error {
	info, err := protocol.DecodeInfo(arg)
	if err != nil {
		return opError(ErrProtocol, "info", err)
	}

	c.info = info

	c.maxPayload = c.opts.MaxPayload
	if info.MaxPayload > 0 && info.MaxPayload < int64(c.maxPayload) {
		c.maxPayload = int(info.MaxPayload)
	}
	c.parser.SetMaxPayload(c.opts.MaxPayload)

	if c.state == StateWaitInfo {
		c.log.Info("Server introduced itself",
			zap.String("server_id", info.ServerID),
			zap.String("version", info.Version),
			zap.Int64("max_payload", info.MaxPayload),
		)
		c.setState(StateSendConnect)
	}

	return nil
}

var authViolation = []byte("authorization")

func (c *Client) serverError(text []byte) {
	code := ErrServer
	if bytes.Contains(bytes.ToLower(text), authViolation) {
		code = ErrAuthFailed
	}

	c.log.Warn("Server error", zap.ByteString("error", text), zap.Stringer("code", code))
	c.raise(opError(code, "server", errors.New(string(text))))
}

func (c *Client) sendConnect(now uint32) error {
	if c.info.AuthRequired && c.opts.User == "" && c.opts.Token == "" {
		c.connectionLost()
		return c.raise(opError(ErrAuthFailed, "connect", errors.New("server requires credentials and none are configured")))
	}

	doc, err := protocol.EncodeConnect(protocol.ConnectOptions{
		Verbose:  c.opts.Verbose,
		Pedantic: c.opts.Pedantic,
		Echo:     !c.opts.NoEcho,
		Name:     c.opts.Name,
		Lang:     "go",
		Version:  c.opts.Version,
		Protocol: 1,
		User:     c.opts.User,
		Pass:     c.opts.Pass,
		Token:    c.opts.Token,
	})
	if err != nil {
		return c.raise(opError(ErrInvalidArg, "connect", err))
	}

	if err := c.sendAll("connect", protocol.AppendConnect(c.tx[:0], doc)); err != nil {
		return c.raise(err)
	}

	if err := c.sendAll("connect", protocol.PingLine); err != nil {
		return c.raise(err)
	}

	// the PING sent with CONNECT is the first keepalive
	c.pingsOut = 1
	c.lastPing = now
	c.stats.PingsSent++

	if c.sessions > 0 {
		c.stats.Reconnects++
	}
	c.sessions++

	c.setState(StateConnected)
	c.emit(EventConnected)

	return c.resubscribe()
}

// resetSession forgets everything about the previous session except subscriptions.
func (c *Client) resetSession() {
	c.parser.Reset()
	c.parser.SetMaxPayload(c.opts.MaxPayload)
	c.rbuf.Reset()
	c.pingsOut = 0
	c.info = protocol.ServerInfo{}
	c.maxPayload = c.opts.MaxPayload
}

func (c *Client) connectionLost() {
	wasLive := c.state.live()

	c.resetSession()
	c.setState(StateDisconnected)

	if wasLive {
		c.emit(EventDisconnected)
	}
}

// sendAll writes p in full, looping over partial sends.
func (c *Client) sendAll(op string, p []byte) error {
	for len(p) > 0 {
		n, err := c.transport.Send(p)
		if err != nil {
			return opError(ErrIO, op, err)
		}

		if n == 0 && !c.transport.Connected() {
			return ErrConnectionLost
		}

		p = p[n:]
	}

	return nil
}

func (c *Client) ping(op string) error {
	if err := c.sendAll(op, protocol.PingLine); err != nil {
		return c.raise(err)
	}

	c.stats.PingsSent++

	if ce := c.log.Check(zap.DebugLevel, "PING"); ce != nil {
		ce.Write(zap.String("op", op), zap.Int("outstanding", c.pingsOut))
	}

	return nil
}

func (c *Client) setState(state State) {
	if c.state == state {
		return
	}

	c.log.Info("State changed", zap.Stringer("from", c.state), zap.Stringer("to", state))
	c.state = state
}

func (c *Client) setErr(err error) error {
	c.lastErr = err
	return err
}

// raise records err and reports it to the event handler.
func (c *Client) raise(err error) error {
	c.lastErr = err
	c.stats.Errors++
	c.emit(EventError)
	return err
}

func (c *Client) emit(event Event) {
	if c.onEvent != nil {
		c.onEvent(c, event)
	}
}
