package sandbox

import (
	"log/slog"

	"github.com/peter-kozarec/simex/pkg/exchange"
)

type Option func(*Broker)

func WithBrokerModel(model exchange.BrokerModel) Option {
	return func(b *Broker) {
		b.brokerModel = model
	}
}

// WithHighLiquidity fills every triggered order completely regardless of
// the visible size.
func WithHighLiquidity() Option {
	return func(b *Broker) {
		b.highLiquidity = true
	}
}

func WithFundsChecker(checker FundsChecker) Option {
	return func(b *Broker) {
		b.funds = checker
	}
}

func WithSecurities(securities ...exchange.Security) Option {
	return func(b *Broker) {
		for _, security := range securities {
			b.securities.Add(security)
		}
	}
}

// WithVenueName names the always open venue used for symbols without a
// registered security.
func WithVenueName(name string) Option {
	return func(b *Broker) {
		b.venueName = name
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}
