package journal

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"OreChat/internal/backend"
)

// Fingerprint hashes a conversation so repeated histories can be grouped
// without keeping their content. Every field is length-prefixed so no two
// distinct conversations share an encoding.
func Fingerprint(messages []backend.ChatMessage) string {
	h := sha256.New()
	for _, msg := range messages {
		writeField(h, msg.Role)
		writeField(h, msg.Content)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(s)))
	w.Write(size[:])
	io.WriteString(w, s)
}
