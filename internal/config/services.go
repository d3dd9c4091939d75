package config

import (
	"errors"
	"fmt"

	"github.com/hanpama/fedfetch/internal/grpctp"
	"github.com/hanpama/fedfetch/internal/subgraph"
)

// Services builds one subgraph.Service per configured subgraph, keyed by
// subgraph name. The returned close func releases gRPC connections.
func (c *Config) Services() (*subgraph.Registry, func() error, error) {
	services := make(map[string]subgraph.Service, len(c.Subgraphs))
	var transports []*grpctp.Transport
	closeAll := func() error {
		var errs []error
		for _, t := range transports {
			errs = append(errs, t.Close())
		}
		return errors.Join(errs...)
	}

	for _, name := range c.SubgraphNames() {
		sg := c.Subgraphs[name]
		switch sg.Transport {
		case TransportGRPC:
			opts := []grpctp.Option{}
			if len(sg.Endpoints) > 0 {
				opts = append(opts, grpctp.WithProvider(grpctp.FixedEndpoints(sg.Endpoints)))
			}
			if sg.Timeout > 0 {
				opts = append(opts, grpctp.WithRPCTimeout(sg.Timeout))
			}
			t, err := grpctp.New(opts...)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("config: subgraph %q: %w", name, err)
			}
			transports = append(transports, t)
			services[name] = t
		default:
			var opts []subgraph.HTTPOption
			if sg.Timeout > 0 {
				opts = append(opts, subgraph.WithHTTPTimeout(sg.Timeout))
			}
			for k, v := range sg.Headers {
				opts = append(opts, subgraph.WithHeader(k, v))
			}
			services[name] = subgraph.NewHTTPService(opts...)
		}
	}
	return subgraph.NewRegistry(services), closeAll, nil
}
