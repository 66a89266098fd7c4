package scheduler

import (
	"context"
	"time"
)

// FireFunc is invoked when an armed action becomes due.
type FireFunc func(ctx context.Context, leadID, token string)

// Disarm stops a pending dispatch. Calling it after the action fired is harmless.
type Disarm func()

// Dispatcher delivers an action at its fire time.
type Dispatcher interface {
	Arm(ctx context.Context, action Action, fire FireFunc) (Disarm, error)
}

// LocalDispatcher fires actions from in-process timers.
type LocalDispatcher struct{}

func NewLocalDispatcher() *LocalDispatcher {
	return &LocalDispatcher{}
}

func (d *LocalDispatcher) Arm(ctx context.Context, action Action, fire FireFunc) (Disarm, error) {
	base := context.WithoutCancel(ctx)
	t := time.AfterFunc(time.Until(action.FireAt), func() {
		fire(base, action.LeadID, action.Token)
	})
	return func() { t.Stop() }, nil
}
