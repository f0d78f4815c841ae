// Package metrics exports connection traffic counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheusHen/mage/mage/registry"
)

// Collector reports the Stats of every connection bound in a registry,
// labelled by connection id.
type Collector struct {
	reg *registry.Registry

	conns   *prometheus.Desc
	frames  *prometheus.Desc
	bytes   *prometheus.Desc
	dropped *prometheus.Desc
}

func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{
		reg: reg,
		conns: prometheus.NewDesc("mage_connections",
			"Connections currently registered.", nil, nil),
		frames: prometheus.NewDesc("mage_frames_total",
			"Frames sent or received.", []string{"conn", "direction"}, nil),
		bytes: prometheus.NewDesc("mage_wire_bytes_total",
			"Wire bytes sent or received, headers and seals included.", []string{"conn", "direction"}, nil),
		dropped: prometheus.NewDesc("mage_dropped_payloads_total",
			"Inbound payloads no channel handle could take.", []string{"conn"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.frames
	ch <- c.bytes
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ids := c.reg.IDs()
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(len(ids)))
	for _, id := range ids {
		conn, err := c.reg.Get(id)
		if err != nil {
			// released since IDs was taken
			continue
		}
		st := conn.Stats()
		label := id.String()
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(st.FramesSent.Load()), label, "sent")
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(st.FramesReceived.Load()), label, "received")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(st.BytesSent.Load()), label, "sent")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(st.BytesReceived.Load()), label, "received")
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped.Load()), label)
	}
}
