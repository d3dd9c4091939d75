// Package config loads the fedfetch YAML configuration and turns it into
// the supergraph, connector registry and subgraph transports the fetch
// dispatcher runs against.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hanpama/fedfetch/internal/connector"
	"github.com/hanpama/fedfetch/internal/fetch"
	"github.com/hanpama/fedfetch/internal/schema"
	"gopkg.in/yaml.v3"
)

// Transport kinds accepted in subgraph configuration.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config is the root of a configuration file.
//
// Relative file paths are resolved against the directory of the file the
// configuration was loaded from.
type Config struct {
	Supergraph       string                   `yaml:"supergraph"`
	Subgraphs        map[string]Subgraph      `yaml:"subgraphs"`
	Connectors       []connector.Connector    `yaml:"connectors"`
	Subscription     fetch.SubscriptionConfig `yaml:"subscription"`
	StrictConnectors bool                     `yaml:"strict_connectors"`
	Log              Log                      `yaml:"log"`
	Otel             Otel                     `yaml:"otel"`
	Server           Server                   `yaml:"server"`

	dir string
}

// Subgraph configures one subgraph service.
type Subgraph struct {
	// Schema is the path of the subgraph SDL.
	Schema string `yaml:"schema"`
	// URL overrides the address found in the supergraph.
	URL string `yaml:"url"`
	// Transport is "http" (default) or "grpc".
	Transport string `yaml:"transport"`
	// Endpoints are gRPC targets. Without them the URL is dialed.
	Endpoints []string          `yaml:"endpoints"`
	Timeout   time.Duration     `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Otel struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	Timeout         time.Duration `yaml:"timeout"`
	Pretty          bool          `yaml:"pretty"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MetadataHeaders []string      `yaml:"metadata_headers"`
}

var ErrNoSupergraph = errors.New("config: supergraph is required")

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes YAML, applies defaults and validates the result. Unknown
// keys are rejected.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 10 * time.Second
	}
	if c.Otel.Service == "" {
		c.Otel.Service = "fedfetch"
	}
	for name, sg := range c.Subgraphs {
		if sg.Transport == "" {
			sg.Transport = TransportHTTP
			c.Subgraphs[name] = sg
		}
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.Supergraph == "" {
		return ErrNoSupergraph
	}
	for _, name := range c.SubgraphNames() {
		sg := c.Subgraphs[name]
		switch sg.Transport {
		case TransportHTTP:
			if len(sg.Endpoints) > 0 {
				return fmt.Errorf("config: subgraph %q: endpoints require the grpc transport", name)
			}
		case TransportGRPC:
		default:
			return fmt.Errorf("config: subgraph %q: unknown transport %q", name, sg.Transport)
		}
		if sg.Timeout < 0 {
			return fmt.Errorf("config: subgraph %q: negative timeout", name)
		}
	}
	if _, err := c.ConnectorRegistry(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SubgraphNames returns the configured subgraph names sorted.
func (c *Config) SubgraphNames() []string {
	out := make([]string, 0, len(c.Subgraphs))
	for name := range c.Subgraphs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ConnectorRegistry builds the connector registry.
func (c *Config) ConnectorRegistry() (*connector.Connectors, error) {
	cs := make([]*connector.Connector, len(c.Connectors))
	for i := range c.Connectors {
		cs[i] = &c.Connectors[i]
	}
	return connector.NewConnectors(cs...)
}

// LoadSupergraph reads the supergraph SDL and every subgraph schema and
// applies the configured URL overrides.
func (c *Config) LoadSupergraph() (*schema.Supergraph, error) {
	api, err := loadSchema("supergraph", c.Path(c.Supergraph))
	if err != nil {
		return nil, err
	}
	subgraphs := make(map[string]*schema.Schema, len(c.Subgraphs))
	urls := map[string]string{}
	for _, name := range c.SubgraphNames() {
		sg := c.Subgraphs[name]
		if sg.Schema != "" {
			s, err := loadSchema(name, c.Path(sg.Schema))
			if err != nil {
				return nil, err
			}
			subgraphs[name] = s
		}
		if sg.URL != "" {
			urls[name] = sg.URL
		}
	}
	sup, err := schema.NewSupergraph(api, subgraphs)
	if err != nil {
		return nil, fmt.Errorf("config: supergraph: %w", err)
	}
	if len(urls) > 0 {
		sup = sup.WithServiceURLs(urls)
	}
	return sup, nil
}

func loadSchema(name, path string) (*schema.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: schema %q: %w", name, err)
	}
	s, err := schema.BuildFromSDL(name, string(b))
	if err != nil {
		return nil, fmt.Errorf("config: schema %q: %w", name, err)
	}
	return s, nil
}
