package client

import (
	"fmt"

	"github.com/luma/piconats/protocol"
	"github.com/luma/piconats/subject"
)

// Publish sends data to subject. The payload is written straight from data, it isn't
// copied and may be reused once Publish returns.
func (c *Client) Publish(subj string, data []byte) error {
	return c.PublishWithReply(subj, "", data)
}

// PublishString is Publish for a string payload.
func (c *Client) PublishString(subj, s string) error {
	if c.state != StateConnected {
		return ErrNotConnected
	}

	if err := c.checkPublish(subj, "", len(s)); err != nil {
		return err
	}

	hdr := protocol.AppendPubHeader(c.tx[:0], subj, "", len(s))
	if err := c.sendAll("publish", hdr); err != nil {
		return err
	}

	// the payload goes out through the scratch so the string is never converted
	size := len(s)
	for len(s) > 0 {
		n := copy(c.tx[:], s)
		if err := c.sendAll("publish", c.tx[:n]); err != nil {
			return err
		}
		s = s[n:]
	}

	return c.finishPublish(size)
}

// PublishWithReply sends data to subject and asks whoever receives it to reply to
// the reply subject.
func (c *Client) PublishWithReply(subj, reply string, data []byte) error {
	if c.state != StateConnected {
		return ErrNotConnected
	}

	if err := c.checkPublish(subj, reply, len(data)); err != nil {
		return err
	}

	if err := c.sendAll("publish", protocol.AppendPubHeader(c.tx[:0], subj, reply, len(data))); err != nil {
		return err
	}

	if err := c.sendAll("publish", data); err != nil {
		return err
	}

	return c.finishPublish(len(data))
}

func (c *Client) checkPublish(subj, reply string, size int) error {
	if size > c.maxPayload {
		return opError(ErrBufferOverflow, "publish",
			fmt.Errorf("payload of %d bytes exceeds the maximum of %d", size, c.maxPayload))
	}

	if err := subject.ValidateLiteral(subj); err != nil {
		return opError(ErrInvalidArg, "publish", err)
	}

	if reply != "" {
		if err := subject.ValidateLiteral(reply); err != nil {
			return opError(ErrInvalidArg, "publish", err)
		}
	}

	return nil
}

func (c *Client) finishPublish(size int) error {
	if err := c.sendAll("publish", protocol.Terminal); err != nil {
		return err
	}

	c.stats.MsgsOut++
	c.stats.BytesOut += uint64(size)

	return nil
}
