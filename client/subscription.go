package client

import (
	"math/bits"

	"github.com/luma/piconats/protocol"
	"github.com/luma/piconats/subject"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// subscription is a row of the subscription table. Rows are in use when their bit is
// set in Client.used.
type subscription struct {
	subject string
	queue   string
	sid     uint16
	handler MsgHandler

	// max is the auto unsubscribe threshold, 0 for none
	max      uint32
	received uint32
}

// Subscribe registers h for messages on subject, which may contain wildcards. It
// returns the sid the subscription is known by.
func (c *Client) Subscribe(subj string, h MsgHandler) (uint16, error) {
	return c.subscribe(subj, "", h)
}

// SubscribeQueue joins the queue group queue on subject. The server delivers each
// message to only one member of the group.
func (c *Client) SubscribeQueue(subj, queue string, h MsgHandler) (uint16, error) {
	if queue == "" {
		return 0, opError(ErrInvalidArg, "subscribe", errEmptyQueue)
	}
	return c.subscribe(subj, queue, h)
}

func (c *Client) subscribe(subj, queue string, h MsgHandler) (uint16, error) {
	if err := subject.ValidatePattern(subj); err != nil {
		return 0, opError(ErrInvalidArg, "subscribe", err)
	}

	if queue != "" {
		if err := subject.ValidateLiteral(queue); err != nil {
			return 0, opError(ErrInvalidArg, "subscribe", err)
		}
	}

	if h == nil {
		return 0, opError(ErrInvalidArg, "subscribe", errNilHandler)
	}

	if c.state != StateConnected {
		return 0, ErrNotConnected
	}

	slot := bits.TrailingZeros64(^c.used)
	if slot >= MaxSubscriptions {
		return 0, opError(ErrNoMemory, "subscribe", errTableFull)
	}

	sid, ok := c.allocSID()
	if !ok {
		return 0, opError(ErrNoMemory, "subscribe", errNoSID)
	}

	if err := c.sendAll("subscribe", protocol.AppendSub(c.tx[:0], subj, queue, sid)); err != nil {
		return 0, err
	}

	c.subs[slot] = subscription{subject: subj, queue: queue, sid: sid, handler: h}
	c.used |= 1 << uint(slot)

	c.log.Debug("Subscribed", zap.String("subject", subj), zap.String("queue", queue), zap.Uint16("sid", sid))

	return sid, nil
}

// Unsubscribe removes the subscription. When there is no session the row is only
// dropped locally, the server forgets it with the connection anyway.
func (c *Client) Unsubscribe(sid uint16) error {
	i := c.find(sid)
	if i < 0 {
		return ErrNotFound
	}

	c.release(i)

	if !c.state.live() {
		return nil
	}

	return c.sendAll("unsubscribe", protocol.AppendUnsub(c.tx[:0], sid, 0))
}

// UnsubscribeAfter removes the subscription once it has received max messages in
// total. If it already has, it is removed now.
func (c *Client) UnsubscribeAfter(sid uint16, max uint32) error {
	if max == 0 {
		return opError(ErrInvalidArg, "unsubscribe", errZeroMax)
	}

	i := c.find(sid)
	if i < 0 {
		return ErrNotFound
	}

	sub := &c.subs[i]
	if max <= sub.received {
		return c.Unsubscribe(sid)
	}

	sub.max = max

	if !c.state.live() {
		return nil
	}

	return c.sendAll("unsubscribe", protocol.AppendUnsub(c.tx[:0], sid, max))
}

// Subscriptions is how many rows of the table are in use.
func (c *Client) Subscriptions() int {
	return bits.OnesCount64(c.used)
}

// deliver hands the current MSG to its subscription.
func (c *Client) deliver(payload []byte) {
	arg := c.parser.Msg()

	c.stats.MsgsIn++
	c.stats.BytesIn += uint64(len(payload))

	i := c.find(arg.SID)
	if i < 0 {
		c.stats.MsgsDropped++
		return
	}

	sub := &c.subs[i]
	sub.received++
	handler := sub.handler

	// the server stops on its own once max is reached, only the row has to go
	if sub.max > 0 && sub.received >= sub.max {
		c.release(i)
	}

	c.msg = Msg{
		Subject: arg.Subject(),
		Reply:   arg.Reply(),
		Data:    payload,
		SID:     arg.SID,
	}

	handler.HandleMsg(&c.msg)
}

// resubscribe sends every subscription to a new session. All of them are attempted,
// only the first failure is returned.
func (c *Client) resubscribe() error {
	var errs error

	for i := range c.subs {
		if !c.active(i) {
			continue
		}

		sub := &c.subs[i]
		err := c.sendAll("resubscribe", protocol.AppendSub(c.tx[:0], sub.subject, sub.queue, sub.sid))

		if err == nil && sub.max > 0 {
			err = c.sendAll("resubscribe", protocol.AppendUnsub(c.tx[:0], sub.sid, sub.max-sub.received))
		}

		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs == nil {
		return nil
	}

	failed := multierr.Errors(errs)
	c.log.Warn("Failed to resubscribe", zap.Int("failed", len(failed)), zap.Error(errs))

	return c.raise(failed[0])
}

func (c *Client) allocSID() (uint16, bool) {
	for i := 0; i < 1<<16-1; i++ {
		c.nextSID++
		if c.nextSID == 0 {
			c.nextSID = 1
		}

		if c.find(c.nextSID) < 0 {
			return c.nextSID, true
		}
	}

	return 0, false
}

func (c *Client) find(sid uint16) int {
	if sid == 0 {
		return -1
	}

	for i := range c.subs {
		if c.active(i) && c.subs[i].sid == sid {
			return i
		}
	}

	return -1
}

func (c *Client) active(i int) bool {
	return c.used&(1<<uint(i)) != 0
}

func (c *Client) release(i int) {
	c.used &^= 1 << uint(i)
	c.subs[i] = subscription{}
}
