package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peter-kozarec/simex/internal/config"
	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/datasource/historical"
	"github.com/peter-kozarec/simex/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drain(t *testing.T, source datasource.TickDataSource) []common.Tick {
	t.Helper()
	var ticks []common.Tick
	for {
		tick, err := source.GetNext()
		if err != nil {
			require.ErrorIs(t, err, datasource.ErrEof)
			return ticks
		}
		ticks = append(ticks, tick)
	}
}

func TestOpenSource_Synthetic(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Symbols = []string{"eurusd", "gbpusd"}
	cfg.Data.Synthetic.Steps = 50

	source, closeSource, err := openSource(context.Background(), &cfg)
	require.NoError(t, err)
	defer closeSource()

	ticks := drain(t, source)
	require.Len(t, ticks, 100)

	symbols := map[string]int{}
	for i, tick := range ticks {
		symbols[tick.Symbol]++
		if i > 0 {
			assert.False(t, tick.TimeStamp.Before(ticks[i-1].TimeStamp), "tick %d out of order", i)
		}
	}
	assert.Equal(t, map[string]int{"EURUSD": 50, "GBPUSD": 50}, symbols)
}

func TestOpenSource_Historical(t *testing.T) {
	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	records := make([]historical.BinaryTick, 10)
	for i := range records {
		records[i] = historical.BinaryTick{
			TimeStamp: start.Add(time.Duration(i) * time.Second).UnixNano(),
			Bid:       1.1,
			Ask:       1.2,
		}
	}
	f, err := os.Create(filepath.Join(dir, "EURUSD.bin"))
	require.NoError(t, err)
	require.NoError(t, historical.WriteTicks(f, records))
	require.NoError(t, f.Close())

	cfg := config.Defaults()
	cfg.Data.Source = "historical"
	cfg.Data.Directory = dir
	cfg.Run.Start = start.Add(2 * time.Second)
	cfg.Run.End = start.Add(6 * time.Second)

	source, closeSource, err := openSource(context.Background(), &cfg)
	require.NoError(t, err)
	defer closeSource()

	ticks := drain(t, source)
	require.Len(t, ticks, 5)
	assert.Equal(t, "EURUSD", ticks[0].Symbol)
	assert.Equal(t, cfg.Run.Start, ticks[0].TimeStamp.UTC())
}

func TestOpenSource_MissingFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Source = "historical"
	cfg.Data.Directory = t.TempDir()

	_, _, err := openSource(context.Background(), &cfg)
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	router := bus.NewRouter(16)
	var trades int
	router.OnTrade = func(context.Context, common.Trade) { trades++ }

	telemetry := middleware.NewTelemetry(zap.NewNop())
	performance := middleware.NewPerformance(zap.NewNop())
	instrument(router, middleware.NewMonitor(middleware.MonitorNone), telemetry, performance)

	require.NoError(t, router.Post(bus.TradeEvent, common.Trade{}))
	require.NoError(t, router.Post(bus.BalanceEvent, common.Balance{}))
	require.NoError(t, router.Drain(context.Background()))

	assert.Equal(t, 1, trades)
	assert.Equal(t, uint64(1), telemetry.Count(bus.TradeEvent))
	assert.Equal(t, uint64(1), telemetry.Count(bus.BalanceEvent))
	assert.Equal(t, uint64(1), performance.Calls(bus.TradeEvent))
}
