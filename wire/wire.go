// Package wire encodes bridge statistics snapshots as canonical CBOR.
package wire

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/nativebridge/capi"
)

// Version is the snapshot format version.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is a timestamped capi.Stats record.
type Snapshot struct {
	Version int        `cbor:"1,keyasint"`
	Taken   int64      `cbor:"2,keyasint"` // Unix nanoseconds
	Stats   capi.Stats `cbor:"3,keyasint"`
}

// NewSnapshot captures the stats of ctx.
func NewSnapshot(ctx *capi.Context) *Snapshot {
	return &Snapshot{
		Version: Version,
		Taken:   time.Now().UnixNano(),
		Stats:   ctx.Stats(),
	}
}

// Time returns when the snapshot was taken.
func (s *Snapshot) Time() time.Time {
	return time.Unix(0, s.Taken)
}

// MarshalStats serializes Stats to CBOR bytes.
func MarshalStats(s *capi.Stats) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalStats deserializes Stats from CBOR bytes.
func UnmarshalStats(data []byte) (*capi.Stats, error) {
	var s capi.Stats
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal stats: %w", err)
	}
	return &s, nil
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("wire: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// WriteSnapshot writes a snapshot to path.
func WriteSnapshot(path string, s *Snapshot) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return fmt.Errorf("wire: marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalSnapshot(data)
}
