package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
)

// SnapshotExt marks a snappy-compressed copy of the raw CSV. The file is a
// single snappy block, not the framed stream format.
const SnapshotExt = ".sz"

// IsSnapshot reports whether a location names a snapshot.
func IsSnapshot(location string) bool {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	return strings.HasSuffix(location, SnapshotExt)
}

// EncodeSnapshot compresses raw CSV bytes.
func EncodeSnapshot(raw []byte) []byte {
	return snappy.Encode(nil, raw)
}

// DecodeSnapshot decompresses a snapshot.
func DecodeSnapshot(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return out, nil
}

// WriteSnapshot fetches src and stores it compressed at path, so later runs
// can load it with no network access. Returns the raw and compressed sizes.
func WriteSnapshot(ctx context.Context, src Source, path string) (raw, compressed int, err error) {
	body, err := src.Fetch(ctx)
	if err != nil {
		return 0, 0, err
	}
	data := EncodeSnapshot(body)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, 0, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, 0, fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return len(body), len(data), nil
}
