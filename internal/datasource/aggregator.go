package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// Aggregator queries several sources concurrently and merges their records.
// Sources are ordered by priority: a key from an earlier source is never
// overwritten by a later one.
type Aggregator struct {
	sources []InfoSource
	logger  logrus.FieldLogger
}

// NewAggregator creates an aggregator over sources, highest priority first.
func NewAggregator(logger logrus.FieldLogger, sources ...InfoSource) *Aggregator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{sources: sources, logger: logger.WithField("component", "aggregator")}
}

// Name returns the data source name.
func (a *Aggregator) Name() string { return "aggregator" }

// Sources returns the configured sources in priority order.
func (a *Aggregator) Sources() []InfoSource { return a.sources }

// GetInfo fetches ticker from every source and merges the records. It fails
// only when no source returns data.
func (a *Aggregator) GetInfo(ctx context.Context, ticker models.Ticker) (models.Info, error) {
	if len(a.sources) == 0 {
		return nil, fmt.Errorf("%w: no data sources configured", ErrTickerNotFound)
	}

	infos := make([]models.Info, len(a.sources))
	errs := make([]error, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			info, err := src.GetInfo(ctx, ticker)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				a.logger.WithError(err).WithFields(logrus.Fields{
					"source": src.Name(),
					"ticker": ticker,
				}).Debug("source failed")
				return nil // non-fatal
			}
			infos[i] = info
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := models.Info{}
	for _, info := range infos {
		merged.Merge(info)
	}
	if len(merged) == 0 {
		if joined := errors.Join(errs...); joined != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTickerNotFound, ticker, joined)
		}
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}
	return merged, nil
}
