package domain

import (
	"crypto/rand"
	"strconv"
	"sync/atomic"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const idPrefixLen = 8

var lastIDMillis int64

// GenerateID produces a task record identifier: an 8 character random
// lowercase alphanumeric prefix, a dash, and the current Unix time in
// milliseconds. The millisecond component is strictly monotonic within the
// process, so a collision additionally requires two processes drawing the
// same prefix in the same millisecond. Callers do not check uniqueness
// against stored records.
func GenerateID() string {
	buf := make([]byte, idPrefixLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; derive the
		// prefix from the clock rather than blocking a sync pass.
		now := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(now >> uint(i*4))
		}
	}
	for i := range buf {
		buf[i] = idAlphabet[int(buf[i])%len(idAlphabet)]
	}
	return string(buf) + "-" + strconv.FormatInt(nextIDMillis(), 10)
}

func nextIDMillis() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastIDMillis)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastIDMillis, last, now) {
			return now
		}
	}
}
