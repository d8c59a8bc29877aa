package deck

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Fingerprint is a stable digest of a deck's modules and cards, ignoring
// provenance cards. Two decks built from the same inputs at different times
// or on different hosts share a fingerprint.
func Fingerprint(d Deck) string {
	h := sha256.New()
	writeField(h, []byte("deck/v1"))
	for _, b := range d.Blocks {
		writeField(h, []byte(b.Module))
		n := 0
		for _, c := range b.Cards {
			if !c.Provenance {
				n++
			}
		}
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], uint64(n))
		h.Write(count[:])
		for _, c := range b.Cards {
			if c.Provenance {
				continue
			}
			writeField(h, []byte(c.Text))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes data with an 8-byte big-endian length prefix.
func writeField(h hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}
