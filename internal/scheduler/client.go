package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"smartsales_backend/platform/config"
	"smartsales_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client dispatches follow-ups as delayed asynq tasks. The task id is the
// action token, so re-arming the same action is rejected by Redis and a
// replaced action can be deleted before it runs.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	log       *logger.Logger
}

func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
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

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		log:       log,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// Arm enqueues the action. The fire callback is not used: the worker picks
// the task up and calls back into the scheduler.
func (c *Client) Arm(ctx context.Context, action Action, _ FireFunc) (Disarm, error) {
	task, err := NewFollowUpDueTask(FollowUpDuePayload{
		LeadID:    action.LeadID,
		Token:     action.Token,
		Kind:      string(action.Kind),
		ForStatus: string(action.ForStatus),
	})
	if err != nil {
		return nil, err
	}

	_, err = c.client.EnqueueContext(ctx, task, taskOptions(action, c.queue)...)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, err
	}

	return func() {
		if err := c.inspector.DeleteTask(c.queue, action.Token); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			c.log.Warn("failed to delete follow-up task", "leadId", action.LeadID, "token", action.Token, "error", err)
		}
	}, nil
}

// taskOptions keys the task by the action token and holds it until FireAt.
func taskOptions(action Action, queue string) []asynq.Option {
	return []asynq.Option{
		asynq.TaskID(action.Token),
		asynq.ProcessAt(action.FireAt),
		asynq.Queue(queue),
	}
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
