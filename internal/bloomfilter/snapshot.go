package bloomfilter

import (
	"bytes"
	"fmt"
)

// Snapshot header: 4-byte magic, 1-byte format version. The bloom library's
// own WriteTo/ReadFrom encoding (which already carries m, k, and the bit
// vector) follows the header, so a corrupt or foreign blob is rejected
// before the library ever touches it (spec §4.3: "if present and
// header-valid, restore").
var snapshotMagic = [4]byte{'S', 'C', 'B', 'F'}

const snapshotVersion byte = 1
const headerSize = 5

// Snapshot serializes the filter's current bit-array into a header-prefixed
// byte buffer suitable for persistence via PS.save_snapshot.
func (f *Filter) Snapshot() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotVersion)
	if _, err := f.inner.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("bloomfilter: snapshot encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the filter's contents from a previously-saved snapshot
// and marks the filter ready. Returns an error if the header is missing,
// the magic does not match, or the version is unsupported — callers should
// treat that as "absent or invalid" per spec §4.3 step 3 and fall back to a
// full rebuild rather than propagating the error.
func (f *Filter) Restore(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("bloomfilter: snapshot too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], snapshotMagic[:]) {
		return fmt.Errorf("bloomfilter: snapshot magic mismatch")
	}
	version := data[4]
	if version != snapshotVersion {
		return fmt.Errorf("bloomfilter: unsupported snapshot version %d", version)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	r := bytes.NewReader(data[headerSize:])
	if _, err := f.inner.ReadFrom(r); err != nil {
		return fmt.Errorf("bloomfilter: snapshot decode failed: %w", err)
	}
	f.ready = true
	return nil
}
