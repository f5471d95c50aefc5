package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const tickReaderComponentName = "data.duckdb.reader"

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrNotConnected  = errors.New("reader is not connected")

	symbolPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// Reader loads ticks from per symbol tables named <symbol>_ticks with the
// columns ts, bid, ask, bid_volume, ask_volume. Prices are read as text so
// DECIMAL and DOUBLE columns keep their exact digits.
type Reader struct {
	dataSourceName string
	db             *sql.DB
}

func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", r.dataSourceName, err)
	}
	r.db = db
	return nil
}

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// DB exposes the connection, mainly to seed tables.
func (r *Reader) DB() *sql.DB {
	return r.db
}

// LoadTicks streams ticks in timestamp order to handler. A handler error
// stops the load.
func (r *Reader) LoadTicks(ctx context.Context, symbol string, from, to time.Time, handler func(common.Tick) error) error {
	if r.db == nil {
		return ErrNotConnected
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	query := fmt.Sprintf(`SELECT ts, CAST(bid AS VARCHAR), CAST(ask AS VARCHAR), CAST(bid_volume AS VARCHAR), CAST(ask_volume AS VARCHAR) FROM %s_ticks WHERE ts BETWEEN ? AND ? ORDER BY ts`, symbol)

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return fmt.Errorf("error querying %s ticks: %w", symbol, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ts time.Time
		var bid, ask, bidVolume, askVolume string
		if err := rows.Scan(&ts, &bid, &ask, &bidVolume, &askVolume); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}

		tick := common.Tick{
			Source:      tickReaderComponentName,
			Symbol:      symbol,
			ExecutionId: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   ts.UTC(),
		}
		if err := parseAll([]string{bid, ask, bidVolume, askVolume}, &tick.Bid, &tick.Ask, &tick.BidVolume, &tick.AskVolume); err != nil {
			return fmt.Errorf("error parsing %s tick at %s: %w", symbol, ts, err)
		}

		if err := handler(tick); err != nil {
			return fmt.Errorf("error processing tick: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}
	return nil
}

// Ticks collects LoadTicks into a slice.
func (r *Reader) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	var ticks []common.Tick
	err := r.LoadTicks(ctx, symbol, from, to, func(tick common.Tick) error {
		ticks = append(ticks, tick)
		return nil
	})
	return ticks, err
}

func parseAll(values []string, targets ...*fixed.Point) error {
	for i, v := range values {
		p, err := fixed.Parse(v)
		if err != nil {
			return err
		}
		*targets[i] = p
	}
	return nil
}
