package txref

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewFormat(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	ref := New(now)
	assert.Regexp(t, regexp.MustCompile(`^TXN-20240315-[0-9a-f]{8}$`), ref)
}

func TestNewVaries(t *testing.T) {
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := New(now)
		assert.False(t, seen[ref], "duplicate reference %s after %d draws", ref, i)
		seen[ref] = true
	}
}
