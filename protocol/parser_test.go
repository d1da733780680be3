package protocol_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/piconats/protocol"
)

type parsedOp struct {
	Kind    protocol.OpKind
	Arg     string
	Payload string
	Subject string
	Reply   string
	SID     uint16
}

// drain runs the parser over everything buffered, copying each op out before
// releasing it.
func drain(p *protocol.Parser, buf *protocol.Buffer) ([]parsedOp, error) {
	var ops []parsedOp

	for {
		op, err := p.Next(buf)
		if err != nil {
			return ops, err
		}

		if op.Kind == protocol.OpNone {
			return ops, nil
		}

		parsed := parsedOp{Kind: op.Kind, Arg: string(op.Arg), Payload: string(op.Payload)}
		if op.Kind == protocol.OpMsg {
			parsed.Subject = string(p.Msg().Subject())
			parsed.Reply = string(p.Msg().Reply())
			parsed.SID = p.Msg().SID
		}

		ops = append(ops, parsed)
		p.Release(buf)
	}
}

func parseAll(input string) ([]parsedOp, error) {
	var (
		p   protocol.Parser
		buf protocol.Buffer
	)

	buf.Write([]byte(input))
	return drain(&p, &buf)
}

var _ = Describe("Parser", func() {
	Describe("control lines", func() {
		It("waits for a CRLF before parsing", func() {
			ops, err := parseAll("PIN")
			Expect(err).To(Succeed())
			Expect(ops).To(BeEmpty())

			ops, err = parseAll("PING\r")
			Expect(err).To(Succeed())
			Expect(ops).To(BeEmpty())
		})

		It("parses PING, PONG, +OK", func() {
			ops, err := parseAll("PING\r\nPONG\r\n+OK\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{
				{Kind: protocol.OpPing},
				{Kind: protocol.OpPong},
				{Kind: protocol.OpOK},
			}))
		})

		It("matches operation names case insensitively", func() {
			ops, err := parseAll("ping\r\nPong\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(HaveLen(2))
			Expect(ops[0].Kind).To(Equal(protocol.OpPing))
			Expect(ops[1].Kind).To(Equal(protocol.OpPong))
		})

		It("parses INFO with its json", func() {
			ops, err := parseAll("INFO {\"server_id\":\"abc\"} \r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{{Kind: protocol.OpInfo, Arg: `{"server_id":"abc"}`}}))
		})

		It("parses -ERR and strips the quotes", func() {
			ops, err := parseAll("-ERR 'Authorization Violation'\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{{Kind: protocol.OpErr, Arg: "Authorization Violation"}}))
		})

		It("rejects unknown operations", func() {
			_, err := parseAll("EVIL\r\n")
			Expect(errors.Is(err, protocol.ErrUnknownOp)).To(BeTrue())

			_, err = parseAll("PINGX\r\n")
			Expect(errors.Is(err, protocol.ErrUnknownOp)).To(BeTrue())
		})

		It("rejects HMSG", func() {
			_, err := parseAll("HMSG foo 1 12 14\r\nNATS/1.0\r\n\r\nhi\r\n")
			Expect(err).To(MatchError(protocol.ErrHeadersUnsupported))
		})

		It("fails when a line can never fit", func() {
			_, err := parseAll(strings.Repeat("x", protocol.BufferSize))
			Expect(err).To(MatchError(protocol.ErrLineTooLong))
		})
	})

	Describe("MSG", func() {
		It("parses a message without a reply", func() {
			ops, err := parseAll("MSG foo.bar 9 5\r\nhello\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{
				{Kind: protocol.OpMsg, Payload: "hello", Subject: "foo.bar", SID: 9},
			}))
		})

		It("parses a message with a reply", func() {
			ops, err := parseAll("MSG foo.bar 9 _INBOX.abc 5\r\nhello\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{
				{Kind: protocol.OpMsg, Payload: "hello", Subject: "foo.bar", Reply: "_INBOX.abc", SID: 9},
			}))
		})

		It("tolerates tabs and repeated spaces between arguments", func() {
			ops, err := parseAll("MSG  foo\t7   3\r\nabc\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(HaveLen(1))
			Expect(ops[0].SID).To(Equal(uint16(7)))
			Expect(ops[0].Payload).To(Equal("abc"))
		})

		It("parses an empty payload", func() {
			ops, err := parseAll("MSG foo 1 0\r\n\r\nPING\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{
				{Kind: protocol.OpMsg, Subject: "foo", SID: 1},
				{Kind: protocol.OpPing},
			}))
		})

		It("keeps CRLF inside the payload", func() {
			ops, err := parseAll("MSG foo 1 6\r\na\r\nb\r\n\r\n")
			Expect(err).To(Succeed())
			Expect(ops).To(HaveLen(1))
			Expect(ops[0].Payload).To(Equal("a\r\nb\r\n"))
		})

		It("waits in payload mode until the whole payload arrived", func() {
			var (
				p   protocol.Parser
				buf protocol.Buffer
			)

			buf.Write([]byte("MSG foo 1 5\r\nhel"))
			ops, err := drain(&p, &buf)
			Expect(err).To(Succeed())
			Expect(ops).To(BeEmpty())
			Expect(p.Mode()).To(Equal(protocol.ModePayload))

			// the header line has already been consumed
			Expect(string(buf.Bytes())).To(Equal("hel"))

			buf.Write([]byte("lo\r\n"))
			ops, err = drain(&p, &buf)
			Expect(err).To(Succeed())
			Expect(ops).To(HaveLen(1))
			Expect(p.Mode()).To(Equal(protocol.ModeLine))
			Expect(buf.Len()).To(Equal(0))
		})

		It("rejects a payload not followed by CRLF", func() {
			_, err := parseAll("MSG foo 1 3\r\nheyX\r\n")
			Expect(errors.Is(err, protocol.ErrMissingPayloadCRLF)).To(BeTrue())
		})

		expectBadArgs := func(input string) {
			_, err := parseAll(input)
			Expect(errors.Is(err, protocol.ErrBadMsgArgs)).To(BeTrue(), "input %q", input)
		}

		It("rejects malformed headers", func() {
			expectBadArgs("MSG foo\r\n")
			expectBadArgs("MSG foo 1\r\n")
			expectBadArgs("MSG foo 1 a b 3\r\n")
			expectBadArgs("MSG foo x1 3\r\n")
			expectBadArgs("MSG foo 65536 3\r\n")
			expectBadArgs("MSG foo -1 3\r\n")
			expectBadArgs("MSG foo 1 3x\r\n")
			expectBadArgs("MSG " + strings.Repeat("s", 128) + " 1 3\r\n")
			expectBadArgs("MSG foo 1 " + strings.Repeat("r", 128) + " 3\r\n")
		})

		It("accepts the largest 16-bit sid", func() {
			ops, err := parseAll("MSG foo 65535 1\r\nx\r\n")
			Expect(err).To(Succeed())
			Expect(ops[0].SID).To(Equal(uint16(65535)))
		})

		It("rejects payloads larger than the configured maximum", func() {
			var (
				p   protocol.Parser
				buf protocol.Buffer
			)

			p.SetMaxPayload(16)
			buf.Write([]byte("MSG foo 1 17\r\n"))
			_, err := drain(&p, &buf)
			Expect(errors.Is(err, protocol.ErrPayloadTooLarge)).To(BeTrue())

			_, err = parseAll("MSG foo 1 99999999999999999999\r\n")
			Expect(errors.Is(err, protocol.ErrPayloadTooLarge)).To(BeTrue())
		})

		It("delivers the same message whatever the read split", func() {
			wire := "MSG sensors.temp 42 _INBOX.r 11\r\ntemp=\r\n21.5\r\n"

			for split := 1; split < len(wire); split++ {
				var (
					p   protocol.Parser
					buf protocol.Buffer
				)

				buf.Write([]byte(wire[:split]))
				first, err := drain(&p, &buf)
				Expect(err).To(Succeed())

				buf.Write([]byte(wire[split:]))
				second, err := drain(&p, &buf)
				Expect(err).To(Succeed())

				ops := append(first, second...)
				Expect(ops).To(HaveLen(1), "split at %d", split)
				Expect(ops[0]).To(Equal(parsedOp{
					Kind:    protocol.OpMsg,
					Payload: "temp=\r\n21.5",
					Subject: "sensors.temp",
					Reply:   "_INBOX.r",
					SID:     42,
				}), "split at %d", split)
			}
		})

		It("resets to line mode", func() {
			var (
				p   protocol.Parser
				buf protocol.Buffer
			)

			buf.Write([]byte("MSG foo 1 50\r\npartial"))
			_, err := drain(&p, &buf)
			Expect(err).To(Succeed())
			Expect(p.Mode()).To(Equal(protocol.ModePayload))

			p.Reset()
			buf.Reset()
			Expect(p.Mode()).To(Equal(protocol.ModeLine))

			buf.Write([]byte("PING\r\n"))
			ops, err := drain(&p, &buf)
			Expect(err).To(Succeed())
			Expect(ops).To(Equal([]parsedOp{{Kind: protocol.OpPing}}))
		})
	})

	Describe("garbage", func() {
		It("never panics", func() {
			inputs := []string{
				"MSG\r\n",
				"MSG \r\n",
				"MSG a b c d e\r\n",
				"INFO\r\n",
				"-ERR\r\n",
				"\r\n",
				"M\r\n",
				"MSG foo 1 2\r\n\n\n\n",
				"+OK\r\n-ERR '\r\n",
				string([]byte{0, 0, 0xff, '\r', '\n'}),
			}

			for i := 0; i < 256; i++ {
				inputs = append(inputs, fmt.Sprintf("MSG foo %d %d\r\n%s\r\n", i, i%7, bytes.Repeat([]byte{byte(i)}, i%7)))
			}

			for _, in := range inputs {
				Expect(func() { _, _ = parseAll(in) }).NotTo(Panic(), "input %q", in)
			}
		})
	})

	It("doesn't allocate", func() {
		var (
			p   protocol.Parser
			buf protocol.Buffer
		)

		wire := []byte("MSG foo.bar 9 _INBOX.x 5\r\nhello\r\nPING\r\n")

		allocs := testing.AllocsPerRun(1000, func() {
			buf.Write(wire)
			for {
				op, err := p.Next(&buf)
				if err != nil || op.Kind == protocol.OpNone {
					break
				}
				p.Release(&buf)
			}
		})

		Expect(allocs).To(BeZero())
	})
})
