package basicclient

import (
	"bytes"
	"encoding/binary"

	"github.com/AdguardTeam/golibs/log"
	"github.com/shieldkit/adblock"
)

// snapshotMagic starts every serialized client. The trailing byte is the
// format version.
var snapshotMagic = []byte("BCSNAP\x00\x01")

// Serialize implements the [adblock.Client] interface for *Client. The
// snapshot carries the original list source; deserialization recompiles it.
func (c *Client) Serialize() (snapshot []byte) {
	buf := &bytes.Buffer{}
	buf.Write(snapshotMagic)

	writeChunk(buf, c.source)

	return buf.Bytes()
}

// deserialize rebuilds a client from a snapshot. Malformed snapshots are
// absorbed: the result is a client with zero rules.
func deserialize(snapshot []byte) (c *Client) {
	rest, ok := bytes.CutPrefix(snapshot, snapshotMagic)
	if !ok {
		log.Debug("basicclient: bad snapshot header, loading empty ruleset")

		return compile(nil)
	}

	source, _, ok := readChunk(rest)
	if !ok {
		log.Debug("basicclient: truncated snapshot, loading empty ruleset")

		return compile(nil)
	}

	return compile(source)
}

// writeChunk appends a length-prefixed byte chunk.
func writeChunk(buf *bytes.Buffer, b []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

// readChunk reads a length-prefixed byte chunk.
func readChunk(b []byte) (chunk, rest []byte, ok bool) {
	l, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < l {
		return nil, nil, false
	}

	return b[n : n+int(l)], b[n+int(l):], true
}

// Factory builds basic clients. It implements [adblock.ClientFactory].
type Factory struct{}

// type check
var _ adblock.ClientFactory = Factory{}

// Compile implements the [adblock.ClientFactory] interface for Factory.
func (Factory) Compile(filters []byte) (c adblock.Client) {
	return compile(filters)
}

// Deserialize implements the [adblock.ClientFactory] interface for Factory.
func (Factory) Deserialize(snapshot []byte) (c adblock.Client) {
	return deserialize(snapshot)
}
