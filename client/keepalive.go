package client

import (
	"go.uber.org/zap"
)

// CheckKeepalive pings the server every PingInterval. When an interval ends with
// MaxPingsOut keepalive pings still unanswered the connection is stale: the client
// is disconnected and needs a new Handshake. Every ping gets a full interval to be
// answered.
func (c *Client) CheckKeepalive() error {
	if !c.state.live() {
		return ErrNotConnected
	}

	now := c.clock.NowMillis()
	if !reached(now, c.lastPing, millis(c.opts.PingInterval)) {
		return nil
	}

	if c.pingsOut >= c.opts.MaxPingsOut {
		c.log.Warn("Connection is stale",
			zap.Int("outstanding", c.pingsOut),
			zap.Duration("interval", c.opts.PingInterval),
		)

		c.setErr(ErrStaleConnection)
		c.connectionLost()
		return ErrStaleConnection
	}

	if err := c.ping("keepalive"); err != nil {
		return err
	}

	c.pingsOut++
	c.lastPing = now
	return nil
}

// reached reports whether d milliseconds passed between since and now. The
// difference is taken as signed so it stays correct when the clock wraps in between.
func reached(now, since, d uint32) bool {
	return int32(now-since) >= int32(d)
}
