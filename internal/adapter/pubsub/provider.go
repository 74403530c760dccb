package pubsub

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-realtime-service/config"
)

// ExchangeConfig describes the AMQP exchange a publisher or subscriber binds to.
type ExchangeConfig struct {
	Name    string
	Type    string
	Durable bool
}

// Provider builds publishers and subscribers for the configured transport:
// RabbitMQ topic exchanges when AMQP is enabled, an in-process channel
// otherwise. The in-process channel is shared, so events exported by this
// node are also visible to its own consumers.
type Provider struct {
	url     string
	enabled bool
	logger  watermill.LoggerAdapter

	once    sync.Once
	channel *gochannel.GoChannel
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
	return &Provider{
		url:     cfg.AMQP.URL,
		enabled: cfg.AMQP.Enabled,
		logger:  logger,
	}
}

// NewInProcessProvider always uses the in-process channel.
func NewInProcessProvider(logger watermill.LoggerAdapter) *Provider {
	return &Provider{logger: logger}
}

func (p *Provider) Enabled() bool { return p.enabled }

func (p *Provider) goChannel() *gochannel.GoChannel {
	p.once.Do(func() {
		p.channel = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, p.logger)
	})
	return p.channel
}

func (p *Provider) BuildPublisher(ex ExchangeConfig) (message.Publisher, error) {
	if !p.enabled {
		return p.goChannel(), nil
	}
	cfg := p.amqpConfig(ex, "", "")
	pub, err := amqp.NewPublisher(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher %s: %w", ex.Name, err)
	}
	return pub, nil
}

// BuildSubscriber declares queue, binds it to the exchange with bindingKey and
// returns a subscriber for it.
func (p *Provider) BuildSubscriber(queue string, ex ExchangeConfig, bindingKey string) (message.Subscriber, error) {
	if !p.enabled {
		return p.goChannel(), nil
	}
	cfg := p.amqpConfig(ex, queue, bindingKey)
	sub, err := amqp.NewSubscriber(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber %s: %w", queue, err)
	}
	return sub, nil
}

func (p *Provider) amqpConfig(ex ExchangeConfig, queue, bindingKey string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(p.url, amqp.GenerateQueueNameConstant(queue))

	cfg.Exchange.GenerateName = func(string) string { return ex.Name }
	cfg.Exchange.Type = ex.Type
	cfg.Exchange.Durable = ex.Durable

	// [ROUTING] publishers use the event routing key as topic; subscribers bind
	// with a wildcard pattern
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	if bindingKey != "" {
		cfg.QueueBind.GenerateRoutingKey = func(string) string { return bindingKey }
	}
	return cfg
}

// Close releases the in-process channel; AMQP publishers and subscribers are
// closed by their owners.
func (p *Provider) Close() error {
	if p.channel == nil {
		return nil
	}
	return p.channel.Close()
}
