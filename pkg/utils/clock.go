package utils

import "time"

// NowUTC 当前 UTC 时间，截断到微秒，与 Postgres timestamptz 精度一致，
// 避免写入前后返回的时间不一致
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
