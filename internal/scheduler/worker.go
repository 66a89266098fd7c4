package scheduler

import (
	"context"
	"fmt"

	"smartsales_backend/platform/apperr"
	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Firer fires a follow-up by lead and token.
type Firer interface {
	Fire(ctx context.Context, leadID, token string) error
}

// Worker consumes follow-up tasks. The timetable lives in memory, so the
// worker runs in the same process as the scheduler that armed the tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	firer  Firer
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, firer Firer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueue()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		firer:  firer,
		log:    log,
	}

	mux.HandleFunc(TaskFollowUpDue, w.handleFollowUpDue)

	return w, nil
}

func (w *Worker) handleFollowUpDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	err = w.firer.Fire(ctx, payload.LeadID, payload.Token)
	if apperr.Is(err, apperr.KindSchedulingConflict) {
		return nil
	}
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("follow-up worker stopped", "error", err)
	}
}
