package utility

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ExecutionID identifies one simulation run. Every event posted during the
// run carries it.
type ExecutionID = uuid.UUID

// TraceID is a time ordered 64-bit id: 41 bits of milliseconds since the
// epoch, 10 bits of machine id and 13 bits of sequence.
type TraceID = uint64

const (
	machineBits  = 10
	sequenceBits = 13

	maxSequence = 1<<sequenceBits - 1
	maxMachine  = 1<<machineBits - 1

	timestampShift = machineBits + sequenceBits
	machineShift   = sequenceBits
)

var (
	executionID   ExecutionID
	executionOnce sync.Once
	executionMu   sync.RWMutex

	traceSequence atomic.Uint64
	machineID     = uint64(uuid.New().ID()) & maxMachine
	traceEpoch    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

func GetExecutionID() ExecutionID {
	executionOnce.Do(func() {
		executionMu.Lock()
		executionID = uuid.Must(uuid.NewV7())
		executionMu.Unlock()
	})

	executionMu.RLock()
	defer executionMu.RUnlock()
	return executionID
}

func ResetExecutionID() ExecutionID {
	GetExecutionID()

	executionMu.Lock()
	defer executionMu.Unlock()
	executionID = uuid.Must(uuid.NewV7())
	return executionID
}

func CreateTraceID() TraceID {
	timestamp := uint64(time.Now().UnixMilli() - traceEpoch)
	seq := traceSequence.Add(1) & maxSequence

	if seq == 0 {
		time.Sleep(time.Millisecond)
		timestamp = uint64(time.Now().UnixMilli() - traceEpoch)
	}

	return (timestamp << timestampShift) | (machineID << machineShift) | seq
}

func ParseTraceID(id TraceID) (timestamp time.Time, machine uint64, seq uint64) {
	seq = id & maxSequence
	machine = (id >> machineShift) & maxMachine
	timestamp = time.UnixMilli(traceEpoch + int64(id>>timestampShift))
	return
}

// Sequence hands out strictly increasing ids starting at 1. Safe for
// concurrent use.
type Sequence struct {
	last atomic.Int64
}

func (s *Sequence) Next() int64 {
	return s.last.Add(1)
}

func (s *Sequence) Last() int64 {
	return s.last.Load()
}
