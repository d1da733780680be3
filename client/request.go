package client

import (
	"fmt"
	"strconv"
	"time"
)

// RequestStatus is what RequestCheck found.
type RequestStatus uint8

const (
	// RequestIdle is returned with an error for requests that aren't in flight
	RequestIdle RequestStatus = iota
	RequestPending
	RequestReady
	RequestTimedOut
)

func (s RequestStatus) String() string {
	switch s {
	case RequestIdle:
		return "idle"
	case RequestPending:
		return "pending"
	case RequestReady:
		return "ready"
	case RequestTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

type requestState uint8

const (
	requestIdle requestState = iota
	requestInFlight
	requestAnswered
	requestCancelled
)

// Request is one request/reply exchange. It is owned by the caller and holds the
// response in a fixed buffer, so it can be kept and reused for further requests once
// the previous one has finished.
type Request struct {
	inbox   string
	sid     uint16
	start   uint32
	timeout uint32

	resp      [MaxResponseSize]byte
	respLen   int
	truncated bool

	state requestState
}

// HandleMsg stores the response. Request implements MsgHandler so the inbox
// subscription needs no closure.
func (r *Request) HandleMsg(m *Msg) {
	if r.state != requestInFlight || m.SID != r.sid {
		return
	}

	r.respLen = copy(r.resp[:], m.Data)
	r.truncated = len(m.Data) > len(r.resp)
	r.state = requestAnswered
}

// Response is the reply payload, cut to MaxResponseSize. It is valid until the
// request is started again.
func (r *Request) Response() []byte {
	return r.resp[:r.respLen]
}

// Truncated is true when the reply didn't fit MaxResponseSize.
func (r *Request) Truncated() bool {
	return r.truncated
}

// Inbox is the reply subject of the last request started.
func (r *Request) Inbox() string {
	return r.inbox
}

// RequestStart publishes data to subj with a fresh inbox as the reply subject and
// waits for a single reply there. Poll the outcome with RequestCheck. r is left
// untouched if the request couldn't be started.
func (c *Client) RequestStart(r *Request, subj string, data []byte, timeout time.Duration) error {
	if r == nil {
		return opError(ErrInvalidArg, "request", errNilRequest)
	}

	if r.state == requestInFlight {
		return opError(ErrInvalidState, "request", errInFlight)
	}

	if timeout < time.Millisecond || timeout > maxInterval {
		return opError(ErrInvalidArg, "request", fmt.Errorf("timeout %s is out of range", timeout))
	}

	if c.state != StateConnected {
		return ErrNotConnected
	}

	if err := c.checkPublish(subj, "", len(data)); err != nil {
		return err
	}

	now := c.clock.NowMillis()
	inbox := c.newInbox(now)

	sid, err := c.Subscribe(inbox, r)
	if err != nil {
		return err
	}

	if err := c.UnsubscribeAfter(sid, 1); err != nil {
		_ = c.Unsubscribe(sid)
		return err
	}

	if err := c.PublishWithReply(subj, inbox, data); err != nil {
		_ = c.Unsubscribe(sid)
		return err
	}

	r.inbox = inbox
	r.sid = sid
	r.start = now
	r.timeout = millis(timeout)
	r.respLen = 0
	r.truncated = false
	r.state = requestInFlight

	return nil
}

// RequestCheck reports on a request. A timeout is reported once, with ErrTimeout,
// after which the request is idle again.
func (c *Client) RequestCheck(r *Request) (RequestStatus, error) {
	if r == nil {
		return RequestIdle, opError(ErrInvalidArg, "request", errNilRequest)
	}

	switch r.state {
	case requestAnswered:
		return RequestReady, nil

	case requestInFlight:
		if c.clock == nil || !reached(c.clock.NowMillis(), r.start, r.timeout) {
			return RequestPending, nil
		}

		_ = c.dropInbox(r)
		r.state = requestIdle

		return RequestTimedOut, c.setErr(ErrTimeout)

	default:
		return RequestIdle, opError(ErrInvalidState, "request", errIdle)
	}
}

// RequestCancel abandons a request, whatever state it is in. A reply that arrives
// later is dropped.
func (c *Client) RequestCancel(r *Request) error {
	if r == nil {
		return nil
	}

	var err error
	if r.state == requestInFlight {
		err = c.dropInbox(r)
	}

	r.state = requestCancelled
	return err
}

// dropInbox removes the inbox subscription if it is still there.
func (c *Client) dropInbox(r *Request) error {
	i := c.find(r.sid)
	if i < 0 || c.subs[i].handler != MsgHandler(r) {
		return nil
	}
	return c.Unsubscribe(r.sid)
}

// newInbox makes a reply subject unique to this client and request. It is meant to
// avoid collisions, not to be unguessable.
func (c *Client) newInbox(now uint32) string {
	c.inboxSeq++

	b := append(c.tx[:0], "_INBOX."...)
	b = strconv.AppendUint(b, uint64(c.inboxSeed^now), 16)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(c.inboxSeq), 16)

	return string(b)
}
