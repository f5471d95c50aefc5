package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/peter-kozarec/simex/internal/config"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/data/duckdb"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/datasource/historical"
	"github.com/peter-kozarec/simex/pkg/datasource/synthetic"
	"golang.org/x/sync/errgroup"
)

// openSource merges one tick stream per configured symbol into a single
// time ordered source.
func openSource(ctx context.Context, cfg *config.Config) (datasource.TickDataSource, func(), error) {
	var (
		sources []datasource.TickDataSource
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch strings.ToLower(cfg.Data.Source) {
	case "historical":
		for _, symbol := range cfg.Data.Symbols {
			src := historical.NewSource[historical.BinaryTick](cfg.HistoricalPath(symbol))
			if err := src.Open(); err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, src.Close)
			sources = append(sources, historical.NewTickReader(src, strings.ToUpper(symbol), cfg.Run.Start, cfg.Run.End))
		}

	case "duckdb":
		ticks, err := loadDuckDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range ticks {
			sources = append(sources, datasource.NewSliceSource(t))
		}

	case "synthetic":
		for i := range cfg.Data.Symbols {
			sources = append(sources, synthetic.NewTickGenerator(cfg.SyntheticParams(i)))
		}

	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	return datasource.NewMergedSource(sources...), closeAll, nil
}

// loadDuckDB reads the ticks of every symbol concurrently.
func loadDuckDB(ctx context.Context, cfg *config.Config) ([][]common.Tick, error) {
	reader := duckdb.NewReader(cfg.Data.DuckDB)
	if err := reader.Connect(); err != nil {
		return nil, err
	}
	defer reader.Close()

	ticks := make([][]common.Tick, len(cfg.Data.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range cfg.Data.Symbols {
		g.Go(func() error {
			loaded, err := reader.Ticks(gctx, strings.ToUpper(symbol), cfg.Run.Start, cfg.Run.End)
			if err != nil {
				return fmt.Errorf("unable to load %s: %w", symbol, err)
			}
			ticks[i] = loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ticks, nil
}
