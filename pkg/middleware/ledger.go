package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/data/db/psql"
)

// Ledger persists every closed trade of a run. Inserts run in the
// background; Wait blocks until they are done.
type Ledger struct {
	insert func(context.Context, common.Trade) error
	wg     sync.WaitGroup
}

func NewLedger(db *sql.DB, runId string) *Ledger {
	return &Ledger{
		insert: func(ctx context.Context, trade common.Trade) error {
			return psql.InsertTrade(ctx, db, runId, trade)
		},
	}
}

func (l *Ledger) WithTrade(handler bus.TradeEventHandler) bus.TradeEventHandler {
	return func(ctx context.Context, trade common.Trade) {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if err := l.insert(context.WithoutCancel(ctx), trade); err != nil {
				slog.Warn("unable to insert trade", "error", err, "symbol", trade.Symbol)
			}
		}()
		if handler != nil {
			handler(ctx, trade)
		}
	}
}

func (l *Ledger) Wait() {
	l.wg.Wait()
}
