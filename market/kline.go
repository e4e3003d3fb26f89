package market

import (
	"fmt"
	"time"
)

// Candle represents one OHLC bar, oldest first when returned in a slice.
type Candle struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	OpenTime time.Time
}

// 交易所支持的 K 线周期。
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseInterval 将 "5m" 这类周期转换为时长。
func ParseInterval(s string) (time.Duration, error) {
	d, ok := intervals[s]
	if !ok {
		return 0, fmt.Errorf("unsupported candle interval %q", s)
	}
	return d, nil
}

// WindowStart 返回以 end 结束、覆盖 count 根 K 线的起始时间。
func WindowStart(interval time.Duration, count int, end time.Time) time.Time {
	return end.Add(-time.Duration(count) * interval)
}
