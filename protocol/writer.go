package protocol

import (
	"strconv"
)

var (
	PingLine = []byte("PING\r\n")
	PongLine = []byte("PONG\r\n")
	Terminal = []byte("\r\n")
)

// The Append functions frame client operations onto dst and return the extended
// slice. Callers that need zero allocations pass a dst with enough capacity.

// AppendPubHeader frames `PUB <subject> [reply] <size>\r\n`. The payload and its
// trailing Terminal are written separately so they never have to be copied.
func AppendPubHeader(dst []byte, subject, reply string, size int) []byte {
	dst = append(dst, "PUB "...)
	dst = append(dst, subject...)
	dst = append(dst, ' ')

	if reply != "" {
		dst = append(dst, reply...)
		dst = append(dst, ' ')
	}

	dst = strconv.AppendInt(dst, int64(size), 10)
	return append(dst, Terminal...)
}

// AppendSub frames `SUB <subject> [queue] <sid>\r\n`.
func AppendSub(dst []byte, subject, queue string, sid uint16) []byte {
	dst = append(dst, "SUB "...)
	dst = append(dst, subject...)
	dst = append(dst, ' ')

	if queue != "" {
		dst = append(dst, queue...)
		dst = append(dst, ' ')
	}

	dst = strconv.AppendUint(dst, uint64(sid), 10)
	return append(dst, Terminal...)
}

// AppendUnsub frames `UNSUB <sid> [max]\r\n`, max is left out when it is zero.
func AppendUnsub(dst []byte, sid uint16, max uint32) []byte {
	dst = append(dst, "UNSUB "...)
	dst = strconv.AppendUint(dst, uint64(sid), 10)

	if max > 0 {
		dst = append(dst, ' ')
		dst = strconv.AppendUint(dst, uint64(max), 10)
	}

	return append(dst, Terminal...)
}

// AppendConnect frames `CONNECT <json>\r\n`, see EncodeConnect.
func AppendConnect(dst []byte, json []byte) []byte {
	dst = append(dst, "CONNECT "...)
	dst = append(dst, json...)
	return append(dst, Terminal...)
}
