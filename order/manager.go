package order

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Executor 提供下单/撤单抽象，由 gateway 或 sim 实现。
type Executor interface {
	Place(ctx context.Context, in Intent, tif TimeInForce) PlaceResult
	Cancel(ctx context.Context, orderID int64) CancelResult
}

// PlacementReport 一侧阶梯挂单的提交结果。
type PlacementReport struct {
	Side      Side
	Attempted int
	Succeeded int
	Filled    int
	Results   []PlaceResult
}

// Failures returns the errors of rejected submissions.
func (r PlacementReport) Failures() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}

// Placer 逐个提交订单，两次提交之间固定休眠以满足交易所限频；从不并发或批量。
type Placer struct {
	exec      Executor
	precision Precision
	tif       TimeInForce
	delay     time.Duration
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPlacer 创建顺序下单器。
func NewPlacer(exec Executor, precision Precision, tif TimeInForce, delay time.Duration, logger *zap.Logger) *Placer {
	if tif == "" {
		tif = Gtc
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Placer{
		exec:      exec,
		precision: precision,
		tif:       tif,
		delay:     delay,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// PlaceLadder 依次提交 intents。单笔失败只记录，不重试也不中断后续档位；
// ctx 取消后跳过剩余档位，但不打断正在进行的请求。
func (p *Placer) PlaceLadder(ctx context.Context, intents []Intent) PlacementReport {
	var report PlacementReport
	if len(intents) > 0 {
		report.Side = intents[0].Side
	}
	for i, in := range intents {
		if i > 0 && p.delay > 0 {
			if err := p.sleep(ctx, p.delay); err != nil {
				p.logger.Warn("ladder placement interrupted",
					zap.String("side", string(report.Side)),
					zap.Int("placed", i),
					zap.Int("remaining", len(intents)-i))
				break
			}
		}
		report.Attempted++

		var res PlaceResult
		if err := p.precision.Validate(in.Price, in.Quantity); err != nil {
			res = Rejected(err)
		} else {
			res = p.exec.Place(ctx, in, p.tif)
		}
		report.Results = append(report.Results, res)

		switch res.Status {
		case StatusFilled:
			report.Succeeded++
			report.Filled++
			p.logger.Info("order filled on placement",
				zap.String("side", string(in.Side)),
				zap.Float64("size", res.FilledSize),
				zap.Float64("avg_price", res.AvgPrice))
		case StatusResting:
			report.Succeeded++
		default:
			p.logger.Warn("order placement failed",
				zap.String("side", string(in.Side)),
				zap.Float64("price", in.Price),
				zap.Float64("qty", in.Quantity),
				zap.Error(res.Err))
		}
	}
	return report
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
