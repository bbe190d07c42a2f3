package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// SinceMs returns elapsed milliseconds since an NowMs timestamp.
func SinceMs(ms int64) int64 { return NowMs() - ms }
