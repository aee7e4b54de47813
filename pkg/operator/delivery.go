package operator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/types"
	"github.com/Agentopians/WeAi/pkg/operator/client"
)

type delivery struct {
	req      *types.SignatureRequest
	requeues int
}

// dispatch delivers d in the background once a delivery slot is free.
func (o *Operator) dispatch(ctx context.Context, d *delivery) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer o.sem.Release(1)
		o.deliver(ctx, d)
	}()
}

// deliver posts the signature with backoff. A 404 means the aggregator has
// not initialized the task yet and is retried like any transient failure.
func (o *Operator) deliver(ctx context.Context, d *delivery) {
	taskIndex := d.req.TaskID
	var err error
	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		err = o.aggregator.SubmitSignature(ctx, d.req)
		if err == nil {
			metric.RecordDeliveryAttempt("success")
			log.Info().
				Uint32("task_index", taskIndex).
				Bool("verdict", d.req.VerificationStatus).
				Int("attempt", attempt).
				Msg("[Operator] Signature delivered")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !client.IsRetryable(err) {
			metric.RecordDeliveryAttempt("rejected")
			log.Warn().Err(err).Uint32("task_index", taskIndex).Msg("[Operator] Signature rejected")
			return
		}
		metric.RecordDeliveryAttempt("retry")
		if attempt == o.retry.MaxAttempts {
			break
		}

		wait := o.retry.Backoff(attempt)
		log.Debug().Err(err).
			Uint32("task_index", taskIndex).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("[Operator] Delivery failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	d.requeues++
	if d.requeues > o.maxRequeues {
		metric.RecordError("delivery_dropped")
		log.Error().Err(err).
			Uint32("task_index", taskIndex).
			Int("requeues", o.maxRequeues).
			Msg("[Operator] Dropping signature after retries")
		return
	}
	log.Warn().Err(err).
		Uint32("task_index", taskIndex).
		Int("requeue", d.requeues).
		Msg("[Operator] Delivery attempts exhausted, requeued")
	o.requeue(d)
}
