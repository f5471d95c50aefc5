package historical

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/utility"
)

const (
	invalidIndex            = -1
	tickReaderComponentName = "datasource.historical.reader"
)

var ErrNoTicksInRange = errors.New("no ticks in range")

// TickReader serves the ticks of one symbol file within [from, to].
type TickReader struct {
	source *Source[BinaryTick]

	symbol string
	from   int64
	to     int64
	idx    int64
}

func NewTickReader(source *Source[BinaryTick], symbol string, from, to time.Time) *TickReader {
	return &TickReader{
		source: source,
		symbol: symbol,
		from:   from.UnixNano(),
		to:     to.UnixNano(),
		idx:    invalidIndex,
	}
}

func (t *TickReader) GetNext() (common.Tick, error) {
	var tick common.Tick

	if t.idx == invalidIndex {
		if err := t.seek(); err != nil {
			return tick, err
		}
	}

	var record BinaryTick
	if err := t.source.Read(t.idx, &record); err != nil {
		if errors.Is(err, datasource.ErrEof) {
			return tick, err
		}
		return tick, fmt.Errorf("error reading entry at index %d: %w", t.idx, err)
	}
	t.idx++

	if record.TimeStamp > t.to {
		return tick, datasource.ErrEof
	}

	record.ToTick(&tick)
	tick.Source = tickReaderComponentName
	tick.Symbol = t.symbol
	tick.ExecutionId = utility.GetExecutionID()
	tick.TraceID = utility.CreateTraceID()

	return tick, nil
}

// seek finds the first record at or after from by binary search.
func (t *TickReader) seek() error {
	entryCount, err := t.source.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}

	var entry BinaryTick
	low, high := int64(0), entryCount-1

	for low <= high {
		mid := (low + high) / 2
		if err := t.source.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}
		if entry.TimeStamp < t.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	if low >= entryCount {
		return fmt.Errorf("%w: %s after %s", ErrNoTicksInRange, t.symbol, time.Unix(0, t.from).UTC())
	}

	t.idx = low
	return nil
}
