package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog/log"
)

// FilterNewTaskCreated returns NewTaskCreated events in [from, to].
func (c *ChainClient) FilterNewTaskCreated(ctx context.Context, from, to uint64) ([]*NewTaskCreatedEvent, error) {
	logs, err := c.backend.FilterLogs(ctx, geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.taskManagerAddress},
		Topics:    [][]common.Hash{{c.newTaskCreatedTopic()}},
	})
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to filter NewTaskCreated logs: %w", err)
	}

	events := make([]*NewTaskCreatedEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := c.ParseNewTaskCreated(l)
		if err != nil {
			log.Warn().Err(err).Uint64("block", l.BlockNumber).Msg("[ChainClient] skipping undecodable log")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// WatchNewTaskCreated polls for NewTaskCreated events starting at start and
// pushes them to sink. A start of zero means the current head.
func (c *ChainClient) WatchNewTaskCreated(ctx context.Context, start uint64, pollInterval time.Duration, sink chan<- *NewTaskCreatedEvent) (event.Subscription, error) {
	if start == 0 {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("[ChainClient] failed to get head block: %w", err)
		}
		start = head
	}

	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		next := start
		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				head, err := c.BlockNumber(ctx)
				if err != nil {
					log.Printf("[ChainClient] failed to get head block: %v", err)
					continue
				}
				if head < next {
					continue
				}
				events, err := c.FilterNewTaskCreated(ctx, next, head)
				if err != nil {
					log.Printf("[ChainClient] %v", err)
					continue
				}
				for _, ev := range events {
					select {
					case sink <- ev:
					case <-quit:
						return nil
					}
				}
				next = head + 1
			}
		}
	})
	return sub, nil
}
