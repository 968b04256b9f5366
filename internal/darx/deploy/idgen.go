package deploy

import (
	"strings"

	"github.com/google/uuid"
)

// nanoIDAlphabet mirrors the Rust original's new_nano_id(): a 12-char,
// lowercase, URL-safe identifier. The original pulls in a dedicated
// `nanoid` crate; this repo's dependency graph already carries
// google/uuid for other ids, so the same shape is reproduced by hashing
// a uuid's bytes down to the nanoid alphabet rather than adding an
// unlisted nanoid package (see DESIGN.md).
const nanoIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newNanoID returns a 12-character identifier drawn from the nanoid
// alphabet above, derived from a fresh random UUID.
func newNanoID() string {
	id := uuid.New()
	raw := id[:]
	var sb strings.Builder
	sb.Grow(12)
	for i := 0; i < 12; i++ {
		sb.WriteByte(nanoIDAlphabet[int(raw[i])%len(nanoIDAlphabet)])
	}
	return sb.String()
}
