package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// Reconciler runs the background liveness sweep. Sessions reconcile
// synchronously on every inbound message; the sweep only covers devices that
// went quiet without a transport-level disconnect.
type Reconciler struct {
	store     Store
	sink      EventSink
	registry  *Registry
	threshold time.Duration
	logger    *zap.Logger
}

func NewReconciler(store Store, sink EventSink, registry *Registry, threshold time.Duration) *Reconciler {
	return &Reconciler{
		store:     store,
		sink:      sink,
		registry:  registry,
		threshold: threshold,
		logger:    zap.L(),
	}
}

// MarkStaleOffline flips any device whose lastSeen exceeds the staleness
// threshold to offline and clears its identified flag. No lastSeen older
// than the threshold may keep status online.
func (r *Reconciler) MarkStaleOffline(ctx context.Context) error {
	cutoff := time.Now().Add(-r.threshold)
	stale, err := r.store.ListStale(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, identity := range stale {
		if err := r.store.SetStatus(ctx, identity, model.DeviceOffline, false); err != nil {
			r.logger.Error("stale device status write failed",
				zap.String("identity", identity), zap.Error(err))
			continue
		}
		r.sink.DeviceStatus(ctx, identity, model.DeviceOffline)
		r.logger.Warn("device marked offline by liveness sweep",
			zap.String("identity", identity),
			zap.Duration("threshold", r.threshold))
	}
	return nil
}
