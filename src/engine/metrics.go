package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// StoreMetrics counts store round trips per collection and operation.
type StoreMetrics struct {
	Operations *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lucidodm",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations issued, by collection and operation.",
		}, []string{"collection", "operation"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lucidodm",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Store operations that returned an error.",
		}, []string{"collection", "operation"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lucidodm",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Errors, m.Duration)
	}
	return m
}

// InstrumentedStore decorates a Store with metrics and debug logging.
type InstrumentedStore struct {
	inner   Store
	metrics *StoreMetrics
	logger  *zap.SugaredLogger
}

func NewInstrumentedStore(inner Store, metrics *StoreMetrics, logger *zap.SugaredLogger) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics, logger: logger}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStore) Unwrap() Store {
	return s.inner
}

func (s *InstrumentedStore) observe(collection, operation string, start time.Time, err error) {
	s.metrics.Operations.WithLabelValues(collection, operation).Inc()
	s.metrics.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Errors.WithLabelValues(collection, operation).Inc()
		s.logger.Warnw("store operation failed", "collection", collection, "operation", operation, "error", err)
		return
	}
	s.logger.Debugw("store operation", "collection", collection, "operation", operation, "elapsed", time.Since(start))
}

func (s *InstrumentedStore) Find(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) ([]bson.M, error) {
	start := time.Now()
	docs, err := s.inner.Find(ctx, collection, where, opts)
	s.observe(collection, "find", start, err)
	return docs, err
}

func (s *InstrumentedStore) FindOne(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error) {
	start := time.Now()
	doc, err := s.inner.FindOne(ctx, collection, where, opts)
	s.observe(collection, "find_one", start, err)
	return doc, err
}

func (s *InstrumentedStore) Insert(ctx context.Context, collection string, docs ...bson.M) ([]interface{}, error) {
	start := time.Now()
	ids, err := s.inner.Insert(ctx, collection, docs...)
	s.observe(collection, "insert", start, err)
	return ids, err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection string, where *WhereGroup, patch Patch) (int64, error) {
	start := time.Now()
	n, err := s.inner.Update(ctx, collection, where, patch)
	s.observe(collection, "update", start, err)
	return n, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	start := time.Now()
	n, err := s.inner.Delete(ctx, collection, where)
	s.observe(collection, "delete", start, err)
	return n, err
}

func (s *InstrumentedStore) Count(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx, collection, where)
	s.observe(collection, "count", start, err)
	return n, err
}

func (s *InstrumentedStore) Collections(ctx context.Context) ([]string, error) {
	return s.inner.Collections(ctx)
}

func (s *InstrumentedStore) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
