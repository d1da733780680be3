package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luma/piconats/client"
)

// Snapshot is a copy of a client's counters taken on the goroutine that drives it.
type Snapshot struct {
	Stats         client.Stats `json:"stats"`
	State         string       `json:"state"`
	Connected     bool         `json:"connected"`
	Subscriptions int          `json:"subscriptions"`
}

// SnapshotOf copies the counters out of c. Only call it from the goroutine that
// drives c.
func SnapshotOf(c *client.Client) Snapshot {
	return Snapshot{
		Stats:         c.Stats(),
		State:         c.State().String(),
		Connected:     c.IsConnected(),
		Subscriptions: c.Subscriptions(),
	}
}

// Collector exposes the last Snapshot it was given as Prometheus metrics. The client
// isn't safe to read from other goroutines, so the loop that drives it hands over
// snapshots with Set and scrapes only ever see those.
type Collector struct {
	mu   sync.Mutex
	snap Snapshot

	msgsIn        *prometheus.Desc
	msgsOut       *prometheus.Desc
	bytesIn       *prometheus.Desc
	bytesOut      *prometheus.Desc
	msgsDropped   *prometheus.Desc
	pingsSent     *prometheus.Desc
	pongsReceived *prometheus.Desc
	reconnects    *prometheus.Desc
	errors        *prometheus.Desc
	connected     *prometheus.Desc
	subscriptions *prometheus.Desc
}

const namespace = "piconats"

// NewCollector makes a collector whose metrics carry a `client` label set to name.
func NewCollector(name string) *Collector {
	labels := prometheus.Labels{"client": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, nil, labels)
	}

	return &Collector{
		msgsIn:        desc("messages_in_total", "Messages received from the server."),
		msgsOut:       desc("messages_out_total", "Messages published."),
		bytesIn:       desc("bytes_in_total", "Payload bytes received from the server."),
		bytesOut:      desc("bytes_out_total", "Payload bytes published."),
		msgsDropped:   desc("messages_dropped_total", "Messages received for a subscription that no longer exists."),
		pingsSent:     desc("pings_sent_total", "PINGs sent to the server."),
		pongsReceived: desc("pongs_received_total", "PONGs received from the server."),
		reconnects:    desc("reconnects_total", "Handshakes after the first one."),
		errors:        desc("errors_total", "Errors recorded by the client."),
		connected:     desc("connected", "1 while the client has a session with the server."),
		subscriptions: desc("subscriptions", "Subscriptions in use."),
	}
}

// Set replaces the snapshot served to scrapes.
func (c *Collector) Set(snap Snapshot) {
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.Snapshot()
	s := snap.Stats

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	counter(c.msgsIn, s.MsgsIn)
	counter(c.msgsOut, s.MsgsOut)
	counter(c.bytesIn, s.BytesIn)
	counter(c.bytesOut, s.BytesOut)
	counter(c.msgsDropped, s.MsgsDropped)
	counter(c.pingsSent, s.PingsSent)
	counter(c.pongsReceived, s.PongsReceived)
	counter(c.reconnects, s.Reconnects)
	counter(c.errors, s.Errors)

	connected := 0.0
	if snap.Connected {
		connected = 1
	}

	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.subscriptions, prometheus.GaugeValue, float64(snap.Subscriptions))
}

func (c *Collector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.msgsIn, c.msgsOut, c.bytesIn, c.bytesOut, c.msgsDropped,
		c.pingsSent, c.pongsReceived, c.reconnects, c.errors,
		c.connected, c.subscriptions,
	}
}

var _ prometheus.Collector = (*Collector)(nil)
