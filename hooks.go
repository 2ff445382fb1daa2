package pool

import (
	"context"
	"net"

	redis "github.com/go-redis/redis/v8"
)

// failureHook feeds command outcomes into the client's failure counter,
// which drives host ejection in the HA pool.
type failureHook struct {
	*client
}

var _ redis.Hook = failureHook{}

func newFailureHook(c *client) *failureHook {
	return &failureHook{
		client: c,
	}
}

func (h failureHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h failureHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	if isNetworkError(cmd.Err()) {
		h.onFailure()
	} else {
		h.onSuccess()
	}
	return nil
}

func (h failureHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h failureHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		if isNetworkError(cmd.Err()) {
			h.onFailure()
			return nil
		}
	}
	h.onSuccess()
	return nil
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(net.Error)
	return ok
}
