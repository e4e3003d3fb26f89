package order

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Canceler cancels a resting order by exchange id.
type Canceler interface {
	Cancel(ctx context.Context, orderID int64) CancelResult
}

// ReapReport 统计一次清理的结果。
type ReapReport struct {
	Expired       int
	CancelledBuy  int
	CancelledSell int
	Failed        int
}

// Cancelled returns the total number of successful cancellations.
func (r ReapReport) Cancelled() int { return r.CancelledBuy + r.CancelledSell }

// Reaper 撤销挂单时间超过 Expiry 的订单。
// 撤单失败只记录日志，本轮不重试；下一轮仍会重新判断。
type Reaper struct {
	Expiry time.Duration
	Canc   Canceler
	Logger *zap.Logger
}

// NewReaper 创建过期订单清理器。
func NewReaper(expiry time.Duration, c Canceler, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{Expiry: expiry, Canc: c, Logger: logger}
}

// Expired reports whether o has been resting longer than expiry at now.
func (r *Reaper) Expired(o OpenOrder, now time.Time) bool {
	return o.Age(now) > r.Expiry
}

// Reap 遍历挂单并撤销过期的订单。
func (r *Reaper) Reap(ctx context.Context, orders []OpenOrder, now time.Time) ReapReport {
	var rep ReapReport
	if r.Expiry <= 0 || r.Canc == nil {
		return rep
	}
	for _, o := range orders {
		if !r.Expired(o, now) {
			continue
		}
		rep.Expired++
		res := r.Canc.Cancel(ctx, o.ID)
		if !res.OK {
			rep.Failed++
			r.Logger.Warn("cancel stale order failed",
				zap.Int64("oid", o.ID),
				zap.String("side", string(o.Side)),
				zap.Duration("age", o.Age(now)),
				zap.Error(res.Err))
			continue
		}
		if o.Side == Buy {
			rep.CancelledBuy++
		} else {
			rep.CancelledSell++
		}
	}
	if rep.Cancelled() > 0 {
		r.Logger.Info("stale orders cancelled",
			zap.Int("buy", rep.CancelledBuy),
			zap.Int("sell", rep.CancelledSell),
			zap.Duration("expiry", r.Expiry))
	}
	return rep
}
