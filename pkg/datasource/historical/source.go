package historical

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
	"golang.org/x/exp/mmap"
)

// BinaryTick is the fixed width record of a tick file, stored in native
// little endian order and sorted by TimeStamp (unix nanoseconds).
type BinaryTick struct {
	TimeStamp int64
	Bid       float64
	Ask       float64
	BidVolume float64
	AskVolume float64
}

func (b BinaryTick) ToTick(tick *common.Tick) {
	tick.TimeStamp = time.Unix(0, b.TimeStamp).UTC()
	tick.Ask = fixed.FromFloat64(b.Ask)
	tick.Bid = fixed.FromFloat64(b.Bid)
	tick.AskVolume = fixed.FromFloat64(b.AskVolume)
	tick.BidVolume = fixed.FromFloat64(b.BidVolume)
}

// WriteTicks encodes records in the layout Source reads.
func WriteTicks(w io.Writer, ticks []BinaryTick) error {
	for i := range ticks {
		if err := binary.Write(w, binary.LittleEndian, &ticks[i]); err != nil {
			return fmt.Errorf("unable to write tick %d: %w", i, err)
		}
	}
	return nil
}

// Source is a memory mapped file of fixed size records of type T.
type Source[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	bufferPool     *sync.Pool
}

func NewSource[T any](dataSourceName string) *Source[T] {
	return &Source[T]{
		dataSourceName: dataSourceName,
		bufferPool: &sync.Pool{
			New: func() any {
				buffer := make([]byte, int(unsafe.Sizeof(*new(T))))
				return &buffer
			},
		},
	}
}

func (s *Source[T]) Open() error {
	reader, err := mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}
	s.reader = reader
	return nil
}

func (s *Source[T]) Close() {
	if s.reader != nil {
		_ = s.reader.Close()
	}
}

func (s *Source[T]) Read(index int64, data *T) error {
	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	n, err := s.reader.ReadAt(*buffer, index*int64(len(*buffer)))
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < len(*buffer) {
		return datasource.ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() (int64, error) {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	if entrySize == 0 {
		return 0, fmt.Errorf("size of %T is zero", *new(T))
	}

	fileInfo, err := os.Stat(s.dataSourceName)
	if err != nil {
		return 0, fmt.Errorf("unable to get data source %q stats: %w", s.dataSourceName, err)
	}

	if fileInfo.Size()%entrySize != 0 {
		return 0, fmt.Errorf("size of %q is not a multiple of %d", s.dataSourceName, entrySize)
	}
	return fileInfo.Size() / entrySize, nil
}
