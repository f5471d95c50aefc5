package psql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
	"github.com/peter-kozarec/simex/pkg/common"
)

const tradesTable = `
	CREATE TABLE IF NOT EXISTS sim_trades (
		run_id       TEXT        NOT NULL,
		trade_no     BIGSERIAL,
		fund_id      TEXT        NOT NULL,
		symbol       TEXT        NOT NULL,
		direction    TEXT        NOT NULL,
		quantity     NUMERIC     NOT NULL,
		open_price   NUMERIC     NOT NULL,
		close_price  NUMERIC     NOT NULL,
		open_time    TIMESTAMPTZ NOT NULL,
		close_time   TIMESTAMPTZ NOT NULL,
		fees         NUMERIC     NOT NULL,
		gross_pnl    NUMERIC     NOT NULL,
		net_pnl      NUMERIC     NOT NULL,
		mae          NUMERIC     NOT NULL,
		mfe          NUMERIC     NOT NULL,
		PRIMARY KEY (run_id, trade_no)
	);`

// DSN builds a postgres connection string. Empty user and password are
// left out.
func DSN(host, port, user, pass, db string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	if user != "" {
		if pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open postgres: %w", err)
	}

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("unable to ping postgres: %w", err)
	}

	return dbConn, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, tradesTable); err != nil {
		return fmt.Errorf("unable to create trades table: %w", err)
	}
	return nil
}

func InsertTrade(ctx context.Context, db *sql.DB, runId string, trade common.Trade) error {
	query := `
	INSERT INTO sim_trades (
		run_id,
		fund_id,
		symbol,
		direction,
		quantity,
		open_price,
		close_price,
		open_time,
		close_time,
		fees,
		gross_pnl,
		net_pnl,
		mae,
		mfe
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`

	_, err := db.ExecContext(
		ctx,
		query,
		runId,
		trade.FundId,
		trade.Symbol,
		trade.Direction.String(),
		trade.Quantity.String(),
		trade.OpenPrice.String(),
		trade.ClosePrice.String(),
		trade.OpenedTime,
		trade.ClosedTime,
		trade.Fees.String(),
		trade.GrossPnL.String(),
		trade.NetPnL.String(),
		trade.MAE.String(),
		trade.MFE.String(),
	)

	return err
}
