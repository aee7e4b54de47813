package aggregator

import (
	"context"
	"sync"

	"github.com/Agentopians/WeAi/pkg/common/types"
)

// resultQueue is an unbounded FIFO of finalized results.
type resultQueue struct {
	mu     sync.Mutex
	items  []*types.FinalizedResult
	notify chan struct{}
}

func newResultQueue() *resultQueue {
	return &resultQueue{notify: make(chan struct{}, 1)}
}

func (q *resultQueue) push(res *types.FinalizedResult) {
	q.mu.Lock()
	q.items = append(q.items, res)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *resultQueue) pop(ctx context.Context) (*types.FinalizedResult, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			res := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return res, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *resultQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
