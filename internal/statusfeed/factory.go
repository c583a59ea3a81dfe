package statusfeed

import (
	"fmt"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// Source is a StatusSource that holds resources until closed.
type Source interface {
	av.StatusSource
	Close() error
}

type simulated struct {
	*av.SimulatedStatusSource
}

func (simulated) Close() error { return nil }

// NewSourceFromConfig creates the status source selected by cfg.Type.
func NewSourceFromConfig(cfg config.StatusFeedConfig, logger av.Logger) (Source, error) {
	switch cfg.Type {
	case "simulated", "":
		return simulated{av.NewSimulatedStatusSource()}, nil
	case "amqp":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for amqp status feed")
		}
		feed, err := Dial(cfg.URL, cfg.Exchange, logger)
		if err != nil {
			return nil, err
		}
		return feed, nil
	default:
		return nil, fmt.Errorf("unknown status feed type: %s", cfg.Type)
	}
}
