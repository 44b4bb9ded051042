package ports

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
)

// Backend is the subset of the API client the registry polls.
type Backend interface {
	Ports(ctx context.Context) ([]api.Port, error)
	PortStatus(ctx context.Context, port string) (bool, error)
}

// Refresh fetches the port list and applies it to r.
func Refresh(ctx context.Context, b Backend, r *Registry, autoSelect bool) Result {
	r.BeginRefresh()
	list, err := b.Ports(ctx)
	if err != nil {
		zap.S().Warnw("failed to list ports", "error", err)
	}
	return r.Apply(list, err, autoSelect)
}

// Poll checks the selected port once. With nothing selected it only
// reports the link as down.
func Poll(ctx context.Context, b Backend, r *Registry) Result {
	port := r.Selected()
	if port == "" {
		return Result{}
	}
	connected, err := b.PortStatus(ctx, port)
	if err != nil {
		zap.S().Debugw("port status check failed", "port", port, "error", err)
	}
	return r.ApplyConnectivity(port, connected, err)
}

// Watch runs the headless poll loop until ctx is done. It refreshes the
// port list at start, polls the selected port on every tick and refreshes
// again whenever the selection is lost or empty. onChange is called from
// the loop goroutine after every step that changed the registry.
func Watch(ctx context.Context, b Backend, r *Registry, interval time.Duration, onChange func(*Registry, Result)) error {
	notify := func(res Result) {
		if onChange != nil && (res.Changed() || res.Refresh || res.Resolve) {
			onChange(r, res)
		}
	}

	notify(Refresh(ctx, b, r, true))

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.Selected() == "" {
				res := Refresh(ctx, b, r, true)
				notify(res)
				continue
			}
			res := Poll(ctx, b, r)
			notify(res)
			if res.Refresh {
				notify(Refresh(ctx, b, r, true))
			}
		}
	}
}
