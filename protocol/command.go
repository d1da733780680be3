package protocol

// OpKind identifies a server operation produced by the Parser.
type OpKind uint8

const (
	// OpNone means no complete operation is buffered yet.
	OpNone OpKind = iota
	OpInfo
	OpMsg
	OpPing
	OpPong
	OpOK
	OpErr
)

func (k OpKind) String() string {
	switch k {
	case OpNone:
		return "NONE"
	case OpInfo:
		return "INFO"
	case OpMsg:
		return "MSG"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	case OpOK:
		return "+OK"
	case OpErr:
		return "-ERR"
	default:
		return "UNKNOWN"
	}
}

// Op is a single parsed server operation. Arg and Payload point into the receive
// buffer and are only valid until the next call to Parser.Release or Parser.Next.
type Op struct {
	Kind OpKind

	// Arg is the INFO json or the -ERR text
	Arg []byte

	// Payload is the MSG payload, the header is available from Parser.Msg
	Payload []byte
}

var (
	opInfo = []byte("INFO")
	opMsg  = []byte("MSG")
	opHMsg = []byte("HMSG")
	opPing = []byte("PING")
	opPong = []byte("PONG")
	opOK   = []byte("+OK")
	opErr  = []byte("-ERR")

	crlf = []byte("\r\n")
)
