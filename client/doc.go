// Package client is a NATS client for devices with a few kilobytes to spare.
//
// The client never allocates once a session is up and never blocks. It is driven by
// the host: Process reads and handles whatever the transport has, CheckKeepalive
// pings the server, and every other call does its I/O synchronously and returns.
//
//   c, _ := client.New(client.Options{Name: "sensor-7"})
//   c.SetTransport(tcp)
//   c.SetClock(transport.SystemClock)
//   c.Handshake()
//
//   for {
//     c.Process()
//     c.CheckKeepalive()
//   }
//
// Errors are Codes, see Code.Class for how to react to one.
package client
