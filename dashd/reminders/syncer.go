package reminders

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashsdk"
)

// Reconciler is implemented by taskstore.Store.
type Reconciler interface {
	ReconcilePending(ctx context.Context, snapshot []dashsdk.ExternalTask) (dashsdk.ReconcileResult, error)
	ReconcileCompleted(ctx context.Context, snapshot []dashsdk.ExternalTask) (dashsdk.ReconcileResult, error)
}

type SyncerOptions struct {
	Source   Source
	Store    Reconciler
	Interval time.Duration
	Clock    quartz.Clock
	Logger   slog.Logger
	// OnSynced runs after any pass that changed the store.
	OnSynced   func()
	Registerer prometheus.Registerer
}

// Syncer periodically mirrors an external source into the task store.
type Syncer struct {
	source   Source
	store    Reconciler
	interval time.Duration
	clock    quartz.Clock
	log      slog.Logger
	onSynced func()

	passes *prometheus.CounterVec
	synced *prometheus.GaugeVec
}

func NewSyncer(opts SyncerOptions) *Syncer {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.OnSynced == nil {
		opts.OnSynced = func() {}
	}
	s := &Syncer{
		source:   opts.Source,
		store:    opts.Store,
		interval: opts.Interval,
		clock:    opts.Clock,
		log:      opts.Logger.Named("reminders"),
		onSynced: opts.OnSynced,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "reminders",
			Name:      "sync_passes_total",
			Help:      "Reconciliation passes by collection and result.",
		}, []string{"collection", "result"}),
		synced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "reminders",
			Name:      "synced_tasks",
			Help:      "Externally synced tasks after the last successful pass.",
		}, []string{"collection"}),
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(s.passes, s.synced)
	}
	return s
}

// SyncOnce fetches both snapshots and reconciles whichever succeeded. A
// side without a configured snapshot is skipped. The returned error
// combines every failure.
func (s *Syncer) SyncOnce(ctx context.Context) (dashsdk.SyncTasksResponse, error) {
	var (
		res  dashsdk.SyncTasksResponse
		merr *multierror.Error
	)

	pass := func(collection string, fetch func(context.Context) ([]dashsdk.ExternalTask, error),
		reconcile func(context.Context, []dashsdk.ExternalTask) (dashsdk.ReconcileResult, error),
	) *dashsdk.ReconcileResult {
		snapshot, err := fetch(ctx)
		if xerrors.Is(err, ErrNoSnapshot) {
			return nil
		}
		if err != nil {
			s.passes.WithLabelValues(collection, "error").Inc()
			merr = multierror.Append(merr, xerrors.Errorf("fetch %s: %w", collection, err))
			return nil
		}
		r, err := reconcile(ctx, snapshot)
		if err != nil {
			s.passes.WithLabelValues(collection, "error").Inc()
			merr = multierror.Append(merr, xerrors.Errorf("reconcile %s: %w", collection, err))
			return nil
		}
		s.passes.WithLabelValues(collection, "ok").Inc()
		s.synced.WithLabelValues(collection).Set(float64(r.Synced))
		return &r
	}

	res.Pending = pass("pending", s.source.Pending, s.store.ReconcilePending)
	res.Completed = pass("completed", s.source.Completed, s.store.ReconcileCompleted)
	if res.Pending != nil || res.Completed != nil {
		s.onSynced()
	}
	return res, merr.ErrorOrNil()
}

// Run syncs immediately and then on every interval until ctx is done. A
// failed pass is logged and the loop keeps going.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return xerrors.Errorf("sync interval must be positive, got %s", s.interval)
	}
	s.tick(ctx)
	waiter := s.clock.TickerFunc(ctx, s.interval, func() error {
		s.tick(ctx)
		return nil
	}, "reminders", "sync")
	err := waiter.Wait()
	if xerrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Syncer) tick(ctx context.Context) {
	res, err := s.SyncOnce(ctx)
	fields := []slog.Field{}
	if res.Pending != nil {
		fields = append(fields, slog.F("pending_synced", res.Pending.Synced), slog.F("pending_removed", res.Pending.Removed))
	}
	if res.Completed != nil {
		fields = append(fields, slog.F("completed_synced", res.Completed.Synced))
	}
	if err != nil {
		s.log.Warn(ctx, "reminder sync failed", append(fields, slog.Error(err))...)
		return
	}
	s.log.Debug(ctx, "reminder sync done", fields...)
}
