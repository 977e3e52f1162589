package keys

import (
	"context"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/schema"
)

// Future is a key that may still be waiting on the oracle.
type Future struct {
	done      chan struct{}
	key       schema.Key
	anomalies []anomaly.Anomaly
}

func resolved(key schema.Key) *Future {
	f := &Future{done: make(chan struct{}), key: key}
	close(f.done)
	return f
}

// Start returns immediately. Heuristic keys are resolved on the spot; the
// oracle path runs in the background until its attempt budget is spent.
func (in *Inferrer) Start(ctx context.Context, t *schema.Table, side string) *Future {
	if key, ok := in.Heuristic(t); ok {
		return resolved(key)
	}
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.key, f.anomalies = in.Infer(ctx, t, side)
	}()
	return f
}

func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the key is known. It always returns, since the oracle
// path is bounded by its attempt policy and ctx.
func (f *Future) Wait() (schema.Key, []anomaly.Anomaly) {
	<-f.done
	return f.key, f.anomalies
}
