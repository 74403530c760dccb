package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// ExportExchange receives every event this service re-publishes.
const ExportExchange = "im_realtime.events"

type PublisherProvider struct {
	provider *Provider
}

func NewPublisherProvider(p *Provider) *PublisherProvider {
	return &PublisherProvider{provider: p}
}

func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	return pp.provider.BuildPublisher(ExchangeConfig{
		Name:    exchange,
		Type:    "topic",
		Durable: true,
	})
}

type SubscriberProvider struct {
	provider *Provider
}

func NewSubscriberProvider(p *Provider) *SubscriberProvider {
	return &SubscriberProvider{provider: p}
}

func (sp *SubscriberProvider) Build(queue, exchange, bindingKey string) (message.Subscriber, error) {
	return sp.provider.BuildSubscriber(queue, ExchangeConfig{
		Name:    exchange,
		Type:    "topic",
		Durable: true,
	}, bindingKey)
}
