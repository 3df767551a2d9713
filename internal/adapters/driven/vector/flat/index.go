// Package flat provides an exact in-process vector index persisted to a
// single binary file per index generation.
//
// File layout (little endian):
//
//	magic   [4]byte "LXVI"
//	version uint32
//	dim     uint32
//	count   uint64
//	data    count*dim float32
//
// The data section only grows: Persist writes the vectors appended since
// the last Load or Persist after the stored ones, then updates count.
// Bytes past count belong to an interrupted write and are ignored.
package flat

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	fileMagic   = "LXVI"
	fileVersion = uint32(1)
	headerSize  = 20
	countOffset = 12
)

var (
	// ErrCorruptIndex indicates an index file that cannot be read.
	ErrCorruptIndex = errors.New("corrupt vector index file")

	// ErrIndexChanged indicates the file was written by someone else since
	// it was loaded. The index must be reloaded before it is persisted.
	ErrIndexChanged = errors.New("vector index file changed since it was loaded")
)

// Index is a brute-force inner-product index over a flat float32 slice.
type Index struct {
	mu   sync.RWMutex
	path string
	dim  int
	data []float32

	// persisted is the number of vectors known to be in the file.
	persisted int64
}

// NewIndex creates an empty index stored at path.
func NewIndex(path string, dim int) *Index {
	return &Index{path: path, dim: dim}
}

// Path returns the backing file.
func (x *Index) Path() string {
	return x.path
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Append adds vectors and returns the position of the first.
func (x *Index) Append(_ context.Context, vectors [][]float32) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, v := range vectors {
		if len(v) != x.dim {
			return 0, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), x.dim)
		}
	}
	first := x.len()
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return first, nil
}

// Vector returns a copy of the vector at a position.
func (x *Index) Vector(_ context.Context, position int64) ([]float32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if position < 0 || position >= x.len() {
		return nil, fmt.Errorf("%w: position %d", domain.ErrNotFound, position)
	}
	row := x.data[position*int64(x.dim) : (position+1)*int64(x.dim)]
	return append([]float32(nil), row...), nil
}

// Search scores every stored vector against the query and returns the
// k best, ties broken by position.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(query), x.dim)
	}
	n := x.len()
	if k <= 0 || n == 0 {
		return []driven.VectorHit{}, nil
	}

	hits := make([]driven.VectorHit, n)
	for pos := int64(0); pos < n; pos++ {
		row := x.data[pos*int64(x.dim) : (pos+1)*int64(x.dim)]
		hits[pos] = driven.VectorHit{Position: pos, Similarity: dot(row, query)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if int64(k) < n {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.len()
}

func (x *Index) len() int64 {
	if x.dim == 0 {
		return 0
	}
	return int64(len(x.data) / x.dim)
}

// Persist makes every appended vector durable. A new file is written
// whole and renamed into place; an existing one grows in place.
func (x *Index) Persist(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, statErr := os.Stat(x.path)
	exists := statErr == nil
	if exists && x.persisted == x.len() {
		return nil
	}

	var err error
	if exists {
		err = x.appendTail()
	} else {
		err = x.rewrite()
	}
	if err != nil {
		return err
	}
	x.persisted = x.len()
	return nil
}

// rewrite writes the whole index to a temporary file and renames it into place.
func (x *Index) rewrite() error {
	if err := os.MkdirAll(filepath.Dir(x.path), 0o700); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(x.path), filepath.Base(x.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	_, err = bw.Write(x.header())
	if err == nil {
		_, err = bw.Write(encodeFloats(x.data))
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// appendTail writes the unpersisted vectors after the stored ones and then
// the new count. The file must still hold exactly what was loaded.
func (x *Index) appendTail() (err error) {
	f, err := os.OpenFile(x.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close index: %w", cerr)
		}
	}()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrCorruptIndex, x.path)
	}
	dim, count, err := x.parseHeader(header)
	if err != nil {
		return err
	}
	if dim != x.dim || int64(count) != x.persisted {
		return fmt.Errorf("%w: %s holds %d vectors of %d, expected %d of %d",
			ErrIndexChanged, x.path, count, dim, x.persisted, x.dim)
	}

	offset := int64(headerSize) + x.persisted*int64(x.dim)*4
	tail := encodeFloats(x.data[x.persisted*int64(x.dim):])
	if _, err := f.WriteAt(tail, offset); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := f.Truncate(offset + int64(len(tail))); err != nil {
		return fmt.Errorf("truncate index: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	// The count moves only once the vectors it covers are on disk.
	if _, err := f.WriteAt(binary.LittleEndian.AppendUint64(nil, uint64(x.len())), countOffset); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	return nil
}

func (x *Index) header() []byte {
	header := make([]byte, 0, headerSize)
	header = append(header, fileMagic...)
	header = binary.LittleEndian.AppendUint32(header, fileVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(x.dim))
	return binary.LittleEndian.AppendUint64(header, uint64(x.len()))
}

// parseHeader returns the dimension and vector count of a file header.
func (x *Index) parseHeader(header []byte) (int, uint64, error) {
	if string(header[:4]) != fileMagic {
		return 0, 0, fmt.Errorf("%w: %s: bad magic", ErrCorruptIndex, x.path)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != fileVersion {
		return 0, 0, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptIndex, x.path, v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := binary.LittleEndian.Uint64(header[countOffset:headerSize])
	return dim, count, nil
}

func encodeFloats(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// Load replaces the in-memory vectors with the file contents. A missing
// file yields an empty index. The dimension recorded in the file wins.
func (x *Index) Load(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := os.Open(x.path)
	if errors.Is(err, os.ErrNotExist) {
		x.data = nil
		x.persisted = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrCorruptIndex, x.path)
	}
	dim, count, err := x.parseHeader(header)
	if err != nil {
		return err
	}
	if info, err := f.Stat(); err == nil && uint64(info.Size()) < headerSize+count*uint64(dim)*4 {
		return fmt.Errorf("%w: %s: size %d is short of %d vectors of %d", ErrCorruptIndex, x.path, info.Size(), count, dim)
	}

	data := make([]float32, 0, int(count)*dim)
	buf := make([]byte, 4)
	for i := uint64(0); i < count*uint64(dim); i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return fmt.Errorf("%w: %s: truncated after %d values", ErrCorruptIndex, x.path, i)
		}
		data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}

	x.dim = dim
	x.data = data
	x.persisted = int64(count)
	return nil
}

// Drop removes the backing file and clears the vectors.
func (x *Index) Drop(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.data = nil
	x.persisted = 0
	if err := os.Remove(x.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index: %w", err)
	}
	return nil
}

// Close releases the vectors. Unpersisted appends are lost.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.data = nil
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
