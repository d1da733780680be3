package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/luma/piconats/subject"
)

var (
	ErrUnknownOp          = errors.New("Unknown operation could not be parsed")
	ErrHeadersUnsupported = errors.New("HMSG is not supported, this client does not negotiate headers")
	ErrBadMsgArgs         = errors.New("MSG is malformed, expected <subject> <sid> [reply-to] <#bytes>")
	ErrPayloadTooLarge    = errors.New("MSG declares a payload larger than the maximum payload")
	ErrMissingPayloadCRLF = errors.New("MSG payload is not followed by CRLF")
	ErrLineTooLong        = errors.New("Control line does not fit in the receive buffer")
)

// Mode is what the parser is currently looking for.
type Mode uint8

const (
	// ModeLine scans for a CRLF terminated control line
	ModeLine Mode = iota

	// ModePayload waits for the payload of the MSG whose header was just parsed
	ModePayload
)

func (m Mode) String() string {
	switch m {
	case ModeLine:
		return "line"
	case ModePayload:
		return "payload"
	default:
		return "unknown"
	}
}

const maxSID = 1<<16 - 1

// MsgArg is the header of the MSG currently being parsed. The subject and reply are
// copied out of the receive buffer since the header line is consumed before the
// payload arrives.
type MsgArg struct {
	subject    [subject.MaxLen]byte
	subjectLen int
	reply      [subject.MaxLen]byte
	replyLen   int

	SID  uint16
	Size int
}

func (m *MsgArg) Subject() []byte {
	return m.subject[:m.subjectLen]
}

// Reply is empty when the message has no reply subject.
func (m *MsgArg) Reply() []byte {
	return m.reply[:m.replyLen]
}

func (m *MsgArg) reset() {
	m.subjectLen, m.replyLen, m.SID, m.Size = 0, 0, 0, 0
}

// Parser turns the bytes in a Buffer into server operations. It makes whatever
// progress the buffered bytes allow and never blocks.
//
// Usage:
//
//   for {
//     op, err := p.Next(buf)
//     if err != nil || op.Kind == OpNone {
//       break
//     }
//     handle(op)
//     p.Release(buf)
//   }
//
// The zero value parses payloads up to MaxPayload.
type Parser struct {
	mode       Mode
	msg        MsgArg
	maxPayload int

	// bytes belonging to the op returned by the last Next
	pending int
}

// SetMaxPayload bounds the payload size a MSG may declare. Values outside of
// (0, MaxPayload] fall back to MaxPayload.
func (p *Parser) SetMaxPayload(n int) {
	if n <= 0 || n > MaxPayload {
		n = MaxPayload
	}
	p.maxPayload = n
}

func (p *Parser) MaxPayload() int {
	if p.maxPayload == 0 {
		return MaxPayload
	}
	return p.maxPayload
}

func (p *Parser) Mode() Mode {
	return p.mode
}

// Msg returns the header of the last MSG. It is valid while the op is being handled.
func (p *Parser) Msg() *MsgArg {
	return &p.msg
}

// Reset forgets any partially parsed operation, it does not clear the buffer.
func (p *Parser) Reset() {
	p.mode = ModeLine
	p.pending = 0
	p.msg.reset()
}

// Release consumes the bytes of the op returned by the last Next. Views handed out
// with that op are invalid afterwards.
func (p *Parser) Release(buf *Buffer) {
	if p.pending > 0 {
		buf.Consume(p.pending)
		p.pending = 0
	}
}

// Next parses the next complete operation in buf. It returns an Op of kind OpNone
// when more bytes are needed. Errors are protocol violations, after one the stream
// can't be trusted and the connection should be dropped.
func (p *Parser) Next(buf *Buffer) (Op, error) {
	p.Release(buf)

	for {
		data := buf.Bytes()

		if p.mode == ModePayload {
			size := p.msg.Size
			if len(data) < size+len(crlf) {
				return Op{}, nil
			}

			if data[size] != '\r' || data[size+1] != '\n' {
				return Op{}, fmt.Errorf("Failed to parse payload of %d bytes for '%s': %w",
					size, p.msg.Subject(), ErrMissingPayloadCRLF)
			}

			p.mode = ModeLine
			p.pending = size + len(crlf)

			return Op{Kind: OpMsg, Payload: data[:size:size]}, nil
		}

		i := bytes.Index(data, crlf)
		if i < 0 {
			if buf.Full() {
				return Op{}, ErrLineTooLong
			}
			return Op{}, nil
		}

		line := data[:i]

		if hasOp(line, opMsg) {
			if err := p.parseMsgArgs(line[len(opMsg):]); err != nil {
				return Op{}, err
			}

			// the header has been copied into p.msg, drop it and go look for the payload
			buf.Consume(i + len(crlf))
			p.mode = ModePayload
			continue
		}

		op, err := parseControl(line)
		if err != nil {
			return Op{}, err
		}

		p.pending = i + len(crlf)
		return op, nil
	}
}

func parseControl(line []byte) (Op, error) {
	switch {
	case hasOp(line, opPing):
		return Op{Kind: OpPing}, nil

	case hasOp(line, opPong):
		return Op{Kind: OpPong}, nil

	case hasOp(line, opOK):
		return Op{Kind: OpOK}, nil

	case hasOp(line, opErr):
		return Op{Kind: OpErr, Arg: trimQuotes(trimSpace(line[len(opErr):]))}, nil

	case hasOp(line, opInfo):
		return Op{Kind: OpInfo, Arg: trimSpace(line[len(opInfo):])}, nil

	case hasOp(line, opHMsg):
		return Op{}, ErrHeadersUnsupported

	default:
		return Op{}, fmt.Errorf("Failed to parse '%s': %w", line, ErrUnknownOp)
	}
}

// parseMsgArgs parses `<subject> <sid> [reply-to] <#bytes>`.
func (p *Parser) parseMsgArgs(args []byte) error {
	var (
		toks [4][]byte
		n    int
	)

	rest := args
	for {
		tok, next := nextToken(rest)
		if tok == nil {
			break
		}

		if n == len(toks) {
			return fmt.Errorf("Failed to parse MSG '%s', too many arguments: %w", args, ErrBadMsgArgs)
		}

		toks[n] = tok
		n++
		rest = next
	}

	var reply, size []byte

	switch n {
	case 3:
		size = toks[2]
	case 4:
		reply, size = toks[2], toks[3]
	default:
		return fmt.Errorf("Failed to parse MSG '%s': %w", args, ErrBadMsgArgs)
	}

	if len(toks[0]) >= subject.MaxLen || len(reply) >= subject.MaxLen {
		return fmt.Errorf("Failed to parse MSG '%s', subject too long: %w", args, ErrBadMsgArgs)
	}

	sid := parseUint(toks[1], maxSID)
	if sid < 0 {
		return fmt.Errorf("Failed to parse MSG '%s', bad sid: %w", args, ErrBadMsgArgs)
	}

	nbytes := parseUint(size, MaxPayload)
	if nbytes < 0 {
		if isDigits(size) {
			return fmt.Errorf("Failed to parse MSG '%s': %w", args, ErrPayloadTooLarge)
		}
		return fmt.Errorf("Failed to parse MSG '%s', bad size: %w", args, ErrBadMsgArgs)
	}

	if nbytes > p.MaxPayload() {
		return fmt.Errorf("Failed to parse MSG '%s': %w", args, ErrPayloadTooLarge)
	}

	p.msg.subjectLen = copy(p.msg.subject[:], toks[0])
	p.msg.replyLen = copy(p.msg.reply[:], reply)
	p.msg.SID = uint16(sid)
	p.msg.Size = nbytes

	return nil
}

// hasOp reports whether line starts with the operation name op, case insensitively,
// followed by the end of the line or whitespace.
func hasOp(line, op []byte) bool {
	if len(line) < len(op) {
		return false
	}

	for i, c := range op {
		b := line[i]
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if b != c {
			return false
		}
	}

	return len(line) == len(op) || isSpace(line[len(op)])
}

// nextToken returns the first whitespace delimited token in b and what follows it.
// tok is nil when b holds no more tokens.
func nextToken(b []byte) (tok, rest []byte) {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}

	if start == len(b) {
		return nil, nil
	}

	end := start
	for end < len(b) && !isSpace(b[end]) {
		end++
	}

	return b[start:end], b[end:]
}

// parseUint parses an all digit decimal no larger than max. It returns -1 for
// anything else, including overflow.
func parseUint(b []byte, max int) int {
	if len(b) == 0 {
		return -1
	}

	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1
		}

		n = n*10 + int(c-'0')
		if n > max {
			return -1
		}
	}

	return n
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && isSpace(b[0]) {
		b = b[1:]
	}
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func trimQuotes(b []byte) []byte {
	if len(b) >= 2 && b[0] == '\'' && b[len(b)-1] == '\'' {
		return b[1 : len(b)-1]
	}
	return b
}
