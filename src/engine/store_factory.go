package engine

import (
	"context"
	"fmt"

	"lucidodm/src/helpers"
	"lucidodm/src/settings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// OpenStore builds the store selected by args.Driver. When metrics are enabled the store
// is wrapped in an InstrumentedStore registered against reg (the default registerer when nil).
func OpenStore(ctx context.Context, args *settings.Arguments, reg prometheus.Registerer, logger *zap.SugaredLogger) (Store, error) {
	newID := helpers.NewIDGenerator(args.IDStrategy)

	var store Store
	var err error
	switch args.Driver {
	case "memory":
		store = NewMemoryStore(newID, logger)
	case "file":
		store, err = NewBundleStore(args.DataDir, newID, logger)
	case "sqlite":
		store, err = NewSQLiteStore(args.SQLitePath, newID, logger)
	case "mongo":
		store, err = NewMongoStore(ctx, args.MongoURI, args.MongoDatabase, newID, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, args.Driver)
	}
	if err != nil {
		return nil, err
	}

	if args.MetricsEnabled {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		store = NewInstrumentedStore(store, NewStoreMetrics(reg), logger)
	}
	return store, nil
}
