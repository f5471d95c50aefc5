// Command backtest replays ticks through the simulated exchange and prints
// the performance report of the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peter-kozarec/simex/internal/config"
	"github.com/peter-kozarec/simex/internal/dbg"
	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/data/db/psql"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/exchange/sandbox"
	"github.com/peter-kozarec/simex/pkg/middleware"
	"github.com/peter-kozarec/simex/pkg/simulation"
	"github.com/peter-kozarec/simex/pkg/utility"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the backtest configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := dbg.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if err := dbg.SetDefaultSlog(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	logger.Info("simex backtest",
		zap.String("execution_id", utility.GetExecutionID().String()),
		zap.String("source", cfg.Data.Source),
		zap.Strings("symbols", cfg.Data.Symbols))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	securities, err := cfg.BuildSecurities()
	if err != nil {
		return err
	}
	brokerModel, err := cfg.BuildBrokerModel()
	if err != nil {
		return err
	}
	orders, err := cfg.BuildOrders()
	if err != nil {
		return err
	}
	flags, err := cfg.MonitorFlags()
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	// Create
	router := bus.NewRouter(cfg.Run.RouterCapacity)

	options := []sandbox.Option{
		sandbox.WithBrokerModel(brokerModel),
		sandbox.WithSecurities(securities...),
		sandbox.WithVenueName(cfg.Broker.FallbackVenue),
		sandbox.WithLogger(slog.Default()),
	}
	if cfg.Broker.HighLiquidity {
		options = append(options, sandbox.WithHighLiquidity())
	}
	simulator := simulation.NewSimulator(logger, router, cfg.Simulation(), cfg.Data.Symbols, options...)
	simulator.Schedule(orders...)

	monitor := middleware.NewMonitor(flags)
	telemetry := middleware.NewTelemetry(logger)
	performance := middleware.NewPerformance(logger)

	// Initialize
	simulator.Bind()
	router.OnQuoteBar = bus.MergeHandlers[common.QuoteBar](brokerModel.OnQuoteBar, router.OnQuoteBar)
	instrument(router, monitor, telemetry, performance)

	if cfg.Ledger.Enabled {
		ledger, closeLedger, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeLedger()
		router.OnTrade = ledger.WithTrade(router.OnTrade)
	}

	// Execute the simulation
	err = <-router.ExecLoop(ctx, datasource.CreateTickDispatcher(router, source))
	switch {
	case err == nil, errors.Is(err, datasource.ErrEof):
	case errors.Is(err, context.Canceled):
		logger.Warn("simulation interrupted")
	default:
		return fmt.Errorf("error during simulation: %w", err)
	}

	report, err := simulator.Close(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, simulation.ErrNoSnapshots):
		logger.Warn("no market data reached the simulator")
	case err != nil:
		return fmt.Errorf("unable to close simulation: %w", err)
	default:
		report.Print(logger)
	}

	simulator.PrintDetails()
	if cfg.Monitor.Telemetry {
		telemetry.PrintStatistics()
	}
	if cfg.Monitor.Performance {
		performance.PrintStatistics()
	}
	router.GetStatistics().Print(logger)
	return nil
}

// instrument wraps every router handler with the monitor and telemetry,
// and the market data and execution handlers with timing.
func instrument(r *bus.Router, m *middleware.Monitor, t *middleware.Telemetry, p *middleware.Performance) {
	r.OnTick = middleware.Chain(m.WithTick, t.WithTick, p.WithTick)(r.OnTick)
	r.OnBar = middleware.Chain(m.WithBar, t.WithBar, p.WithBar)(r.OnBar)
	r.OnQuoteBar = middleware.Chain(m.WithQuoteBar, t.WithQuoteBar, p.WithQuoteBar)(r.OnQuoteBar)
	r.OnEquity = middleware.Chain(m.WithEquity, t.WithEquity)(r.OnEquity)
	r.OnBalance = middleware.Chain(m.WithBalance, t.WithBalance)(r.OnBalance)
	r.OnOrder = middleware.Chain(m.WithOrder, t.WithOrder, p.WithOrder)(r.OnOrder)
	r.OnOrderSubmitted = middleware.Chain(m.WithOrderSubmitted, t.WithOrderSubmitted)(r.OnOrderSubmitted)
	r.OnOrderCancelled = middleware.Chain(m.WithOrderCancelled, t.WithOrderCancelled)(r.OnOrderCancelled)
	r.OnOrderUpdated = middleware.Chain(m.WithOrderUpdated, t.WithOrderUpdated)(r.OnOrderUpdated)
	r.OnOrderFilled = middleware.Chain(m.WithOrderFilled, t.WithOrderFilled, p.WithOrderFilled)(r.OnOrderFilled)
	r.OnOrderPartiallyFilled = middleware.Chain(m.WithOrderPartiallyFilled, t.WithOrderPartiallyFilled, p.WithOrderPartiallyFilled)(r.OnOrderPartiallyFilled)
	r.OnTrade = middleware.Chain(m.WithTrade, t.WithTrade, p.WithTrade)(r.OnTrade)
	r.OnPositionSnapshot = middleware.Chain(m.WithPositionSnapshot, t.WithPositionSnapshot)(r.OnPositionSnapshot)
}

// openLedger connects to postgres and prepares the trades table. The
// returned func waits for pending inserts before closing the connection.
func openLedger(ctx context.Context, cfg *config.Config) (*middleware.Ledger, func(), error) {
	db, err := psql.Connect(ctx, cfg.LedgerDSN())
	if err != nil {
		return nil, nil, err
	}
	if err := psql.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	runId := cfg.Ledger.RunId
	if runId == "" {
		runId = utility.GetExecutionID().String()
	}

	ledger := middleware.NewLedger(db, runId)
	return ledger, func() {
		ledger.Wait()
		_ = db.Close()
	}, nil
}
