package fetch

import (
	"github.com/hanpama/fedfetch/internal/connector"
	"github.com/hanpama/fedfetch/internal/schema"
	"github.com/hanpama/fedfetch/internal/subgraph"
	"go.uber.org/zap"
)

// SubscriptionConfig is handed through to subscription transports.
type SubscriptionConfig struct {
	Enabled                bool `yaml:"enabled"`
	MaxOpenedSubscriptions int  `yaml:"max_opened_subscriptions"`
}

// Factory holds the configuration shared by dispatchers. Nothing in it
// changes after NewFactory returns.
type Factory struct {
	supergraph   *schema.Supergraph
	lookup       subgraph.Lookup
	subscription *SubscriptionConfig
	connectors   *connector.Connectors
	processor    connector.Processor
	strict       bool
	logger       *zap.Logger
}

type Option func(*Factory)

func WithSubscriptionConfig(c SubscriptionConfig) Option {
	return func(f *Factory) { f.subscription = &c }
}

func WithConnectors(c *connector.Connectors) Option {
	return func(f *Factory) { f.connectors = c }
}

// WithConnectorProcessor replaces the default TemplateProcessor.
func WithConnectorProcessor(p connector.Processor) Option {
	return func(f *Factory) { f.processor = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithStrictConnectors makes connector pre-processing failures fail the
// fetch. By default they are logged and published as events.
func WithStrictConnectors() Option {
	return func(f *Factory) { f.strict = true }
}

func NewFactory(sg *schema.Supergraph, lookup subgraph.Lookup, opts ...Option) *Factory {
	f := &Factory{
		supergraph: sg,
		lookup:     lookup,
		processor:  connector.TemplateProcessor{},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Create returns a new Dispatcher bound to f's configuration.
func (f *Factory) Create() *Dispatcher {
	return &Dispatcher{
		supergraph: f.supergraph,
		lookup:     f.lookup,
		connectors: f.connectors,
		processor:  f.processor,
		strict:     f.strict,
		logger:     f.logger.Named("fetch"),
	}
}

// SubgraphServiceForSubscriptions returns the transport of a subgraph for
// callers that open subscription channels outside of fetches.
func (f *Factory) SubgraphServiceForSubscriptions(name string) (subgraph.Service, bool) {
	return f.lookup.Service(name)
}

// SubscriptionConfig returns the subscription configuration, or nil.
func (f *Factory) SubscriptionConfig() *SubscriptionConfig { return f.subscription }
