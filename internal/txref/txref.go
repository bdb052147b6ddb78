// Package txref generates human-readable transaction references of the form
// TXN-<YYYYMMDD>-<8 hex chars>. The random suffix makes collisions unlikely;
// the database unique constraint on transaction_reference is the actual
// guarantee, with callers regenerating on a duplicate-key error.
package txref

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const prefix = "TXN"

// New returns a fresh transaction reference for the given time.
func New(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to the clock so the reference is still usable.
		return fmt.Sprintf("%s-%s-%08x", prefix, now.Format("20060102"), now.UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), hex.EncodeToString(buf))
}
