package metrics

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/TheusHen/mage/mage/crypto"
	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/registry"
)

func newRegistry(t *testing.T) (*registry.Registry, *mux.Connection) {
	t.Helper()
	pub, err := crypto.PublicKeyFromSeed(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	var wire bytes.Buffer
	c, err := mux.NewConn(5, &wire, false, bytes.Repeat([]byte{1}, 32), pub[:])
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.Register(c))
	return reg, c
}

func TestCollector(t *testing.T) {
	reg, c := newRegistry(t)
	_, err := c.WriteChannel(1, make([]byte, 1000))
	require.NoError(t, err)

	col := NewCollector(reg)
	// connections gauge + 2 frames + 2 bytes + dropped
	require.Equal(t, 6, testutil.CollectAndCount(col))

	pr := prometheus.NewPedanticRegistry()
	require.NoError(t, pr.Register(col))
	families, err := pr.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetValue()
			}
			if m.Counter != nil {
				got[key] = m.GetCounter().GetValue()
			} else {
				got[key] = m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, 1.0, got["mage_connections"])
	require.Equal(t, 3.0, got["mage_frames_total,conn-000005,sent"])
	require.Equal(t, 0.0, got["mage_frames_total,conn-000005,received"])
	require.Equal(t, float64(c.Stats().BytesSent.Load()), got["mage_wire_bytes_total,conn-000005,sent"])
}

func TestHandler(t *testing.T) {
	reg, _ := newRegistry(t)
	pr := prometheus.NewRegistry()
	require.NoError(t, pr.Register(NewCollector(reg)))

	srv := httptest.NewServer(Handler(pr))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `mage_frames_total{conn="conn-000005",direction="sent"} 0`)
	require.Contains(t, string(body), "mage_connections 1")
}
