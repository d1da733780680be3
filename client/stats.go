package client

// Stats are the client's counters. They survive reconnects and are only reset by Init.
type Stats struct {
	MsgsIn   uint64
	MsgsOut  uint64
	BytesIn  uint64
	BytesOut uint64

	// MsgsDropped counts messages for a sid with no subscription, usually a race
	// with a recent unsubscribe
	MsgsDropped uint64

	PingsSent     uint64
	PongsReceived uint64
	Reconnects    uint64
	Errors        uint64
}
