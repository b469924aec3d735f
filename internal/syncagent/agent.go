package syncagent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oversite/patrol-backend/internal/pkg/httpx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
)

// Agent drives the replay loop: every interval it sends the whole pending
// queue as one batch, marks server-confirmed scans synced, parks
// deterministic rejections, and leaves the rest pending for the next cycle.
type Agent struct {
	queue    *Queue
	sender   *Sender
	log      *logger.Logger
	interval time.Duration
}

func NewAgent(queue *Queue, sender *Sender, baseLog *logger.Logger, interval time.Duration) *Agent {
	agentLog := baseLog.With("component", "Agent")
	if interval <= 0 {
		interval = time.Minute
	}
	return &Agent{queue: queue, sender: sender, log: agentLog, interval: interval}
}

func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if _, err := a.FlushOnce(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("Flush failed, will retry", "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(httpx.JitterSleep(a.interval)):
			}
		}
	})
	return g.Wait()
}

// FlushOnce performs one sync cycle and returns how many scans the server
// confirmed as applied.
func (a *Agent) FlushOnce(ctx context.Context) (int, error) {
	pending, err := a.queue.Pending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, scan := range pending {
		ids = append(ids, scan.ClientUUID)
	}
	if err := a.queue.BumpAttempts(ids); err != nil {
		a.log.Warn("Attempt counter update failed", "error", err)
	}

	result, pushErr := a.sender.Push(ctx, pending)
	if result != nil {
		if err := a.queue.MarkSynced(result.Applied); err != nil {
			return 0, err
		}
		for _, rej := range result.Rejected {
			if err := a.queue.MarkRejected(rej.ClientUUID, rej.Code, rej.Message); err != nil {
				return 0, err
			}
			a.log.Warn("Scan rejected by server",
				"client_uuid", rej.ClientUUID.String(),
				"code", rej.Code,
				"message", rej.Message)
		}
		if len(result.Applied) > 0 {
			a.log.Info("Scans synced", "count", len(result.Applied))
		}
		if pushErr == nil {
			return len(result.Applied), nil
		}
		return len(result.Applied), pushErr
	}
	return 0, pushErr
}
