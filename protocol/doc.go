package protocol

// This package implements parsing and framing for the NATS client protocol, the
// text protocol piconats speaks to a NATS server.
//
// The protocol aims to be
//
// - easy to implement
// - simple to parse incrementally
// - human readable
//
// Nothing on the hot path allocates. Bytes arrive in a fixed size Buffer, the Parser
// walks them in place and hands out views that stay valid until Release is called.
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - operation names are case insensitive, servers send them uppercase
// - arguments are separated by spaces or tabs
//
// === Server operations
//
// - `INFO {json}` - Sent on connect, and again whenever the cluster topology changes
// - `MSG <subject> <sid> [reply-to] <#bytes>\r\n<payload>\r\n` - A delivered message
// - `HMSG ...` - A message with headers. Not supported, parsing it is a protocol error
// - `PING` / `PONG` - Keepalive
// - `+OK` - Acknowledgement, only sent in verbose mode
// - `-ERR <error>` - The server's error, for example `-ERR 'Authorization Violation'`
//
// === Client operations
//
// - `CONNECT {json}` - The first thing a client sends after INFO
// - `PUB <subject> [reply-to] <#bytes>\r\n<payload>\r\n`
// - `SUB <subject> [queue group] <sid>\r\n`
// - `UNSUB <sid> [max_msgs]\r\n`
// - `PING` / `PONG`
//
// === MSG
//
//   ```
//   < MSG sensors.kitchen.temp 9 11\r\n
//   < temp=21.5C\r\n
//   ```
//
// The payload is exactly #bytes long and may contain anything, including `\r\n`, so
// the parser switches from scanning lines to counting bytes once it has the header.
// The two bytes after the payload must be `\r\n`, anything else means the stream is
// corrupt and can't be trusted to resynchronise.
//
