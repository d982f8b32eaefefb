// Package bloomfilter implements the process-wide rotational Bloom filter
// used to skip re-inserting URLs already known to the frontier. Fixed
// capacity of 10^8 bits with 7 hash functions, two generations: the active
// generation absorbs new inserts, the retiring generation is still queried
// so a rotation never produces a false negative for recently-seen URLs.
package bloomfilter

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// designCapacity is the number of inserts a generation is sized for before
// its expected false-positive rate starts climbing, n = m*ln(2)/k.
var designCapacity = float64(Bits) * math.Ln2 / float64(HashFuncs)

const (
	// Bits is the fixed capacity of each generation, per spec.
	Bits uint = 100_000_000
	// HashFuncs is the number of hash functions per generation, per spec.
	HashFuncs uint = 7
	// RotateThreshold is the fill-ratio fraction at which the active
	// generation is retired and a fresh one rotated in.
	RotateThreshold = 0.5
)

// Filter is the process singleton. All access is guarded by a single mutex,
// matching spec's "lookups and inserts are guarded by one process-wide
// mutex."
type Filter struct {
	mu        sync.Mutex
	active    *bloom.BloomFilter
	retiring  *bloom.BloomFilter // may be nil before the first rotation
	estimated uint
}

// New builds an empty two-generation filter.
func New() *Filter {
	return &Filter{active: bloom.New(Bits, HashFuncs)}
}

// Load restores a filter snapshot from disk, falling back to an empty
// filter if the file does not exist (first run).
func Load(path string) (*Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("bloomfilter: open %s: %w", path, err)
	}
	defer f.Close()

	active := &bloom.BloomFilter{}
	if _, err := active.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("bloomfilter: decode %s: %w", path, err)
	}
	return &Filter{active: active}, nil
}

// Snapshot persists the active generation to path, via a temp file + rename
// so a crash mid-write never corrupts the previous snapshot.
func (f *Filter) Snapshot(path string) error {
	f.mu.Lock()
	active := f.active
	f.mu.Unlock()

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("bloomfilter: create %s: %w", tmp, err)
	}
	writer := bufio.NewWriter(out)
	if _, err := active.WriteTo(writer); err != nil {
		out.Close()
		return fmt.Errorf("bloomfilter: encode: %w", err)
	}
	if err := writer.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("bloomfilter: flush: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("bloomfilter: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Contains reports whether key is present in either generation.
func (f *Filter) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := []byte(key)
	if f.active.Test(data) {
		return true
	}
	return f.retiring != nil && f.retiring.Test(data)
}

// Add inserts key into the active generation, rotating first if the active
// generation's fill ratio has crossed RotateThreshold. It reports whether
// key was newly inserted (false if it was already present in either
// generation).
func (f *Filter) Add(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := []byte(key)
	if f.active.Test(data) || (f.retiring != nil && f.retiring.Test(data)) {
		return false
	}

	if f.fillRatioLocked() >= RotateThreshold {
		f.rotateLocked()
	}
	f.active.Add(data)
	f.estimated++
	return true
}

func (f *Filter) fillRatioLocked() float64 {
	return float64(f.estimated) / designCapacity
}

func (f *Filter) rotateLocked() {
	f.retiring = f.active
	f.active = bloom.New(Bits, HashFuncs)
	f.estimated = 0
}
