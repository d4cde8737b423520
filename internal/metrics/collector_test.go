package metrics

import (
	"bedrock/internal/registry"
	"bedrock/internal/types"
	"context"
	"path/filepath"
	"strconv"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// sample returns the value of the metric name labelled with kind and id.
func (s *UnitTestSuite) sample(reg *prometheus.Registry, name, kind, id string) (float64, bool) {
	mfs, err := reg.Gather()
	s.Require().NoError(err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if got["kind"] != kind || got["id"] != id {
				continue
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue(), true
			}
			return m.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func (s *UnitTestSuite) TestCollectsBothRegistries() {
	ctx := context.Background()
	server := miniredis.RunT(s.T())
	port, err := strconv.Atoi(server.Port())
	s.Require().NoError(err)

	kvReg := registry.NewKVRegistry()
	defer kvReg.Close()
	_, err = kvReg.RegisterSpec(ctx, "cache", types.KVClientSpec{Host: server.Host(), Port: port, MaxTotal: 4})
	s.Require().NoError(err)

	sqlReg := registry.NewSQLRegistry(nil)
	defer sqlReg.Close()
	sqlClient, err := sqlReg.RegisterSpec(ctx, "main", types.SQLClientSpec{
		Driver:      "sqlite",
		URL:         filepath.Join(s.T().TempDir(), "metrics.db"),
		Username:    "sa",
		Password:    "secret",
		MaxPoolSize: 3,
	})
	s.Require().NoError(err)
	sess, err := sqlClient.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()

	reg := prometheus.NewPedanticRegistry()
	c := NewPoolCollector(sqlReg, kvReg)
	s.Same(c, Register(reg, c))

	v, ok := s.sample(reg, "bedrock_pool_max_connections", types.ClientKindSQL, "main")
	s.True(ok)
	s.Equal(float64(3), v)
	v, ok = s.sample(reg, "bedrock_pool_in_use_connections", types.ClientKindSQL, "main")
	s.True(ok)
	s.Equal(float64(1), v)
	v, ok = s.sample(reg, "bedrock_pool_max_connections", types.ClientKindKV, "cache")
	s.True(ok)
	s.Equal(float64(4), v)
	_, ok = s.sample(reg, "bedrock_pool_timeouts_total", types.ClientKindKV, "cache")
	s.True(ok)
	_, ok = s.sample(reg, "bedrock_pool_timeouts_total", types.ClientKindSQL, "main")
	s.False(ok)
}

func (s *UnitTestSuite) TestNilRegistriesCollectNothing() {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(NewPoolCollector(nil, nil))
	mfs, err := reg.Gather()
	s.NoError(err)
	s.Empty(mfs)
}
