// Package metrics provides Prometheus metrics for the quoting loop.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	MidPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_mid_price",
		Help: "本轮使用的中间价",
	}, []string{"instrument"})
	VolMultiplier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_vol_multiplier",
		Help: "ATR 波动率乘数",
	}, []string{"instrument"})
	InventoryRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_inventory_ratio",
		Help: "价差偏移使用的库存比例",
	}, []string{"instrument"})
	PositionValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_position_value",
		Help: "仓位名义价值（永续带符号，现货为持币价值）",
	}, []string{"instrument"})

	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_placed_total",
		Help: "交易所接受的挂单数量",
	}, []string{"instrument", "side"})
	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_failed_total",
		Help: "下单失败数量",
	}, []string{"instrument", "side"})
	OrdersFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_filled_on_place_total",
		Help: "下单即成交的数量",
	}, []string{"instrument", "side"})
	RiskDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_risk_denials_total",
		Help: "风控跳过的报价侧",
	}, []string{"instrument", "side", "reason"})
	OrdersReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_reaped_total",
		Help: "撤销的过期挂单",
	}, []string{"instrument", "side"})
	ReapFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_reap_failures_total",
		Help: "过期挂单撤单失败",
	}, []string{"instrument"})
	IterationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_iteration_errors_total",
		Help: "迭代中的错误，按阶段区分",
	}, []string{"instrument", "stage"})
	RESTRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_rest_requests_total",
		Help: "REST 请求数，按端点与结果区分",
	}, []string{"endpoint", "result"})
	RESTLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_rest_latency_seconds",
		Help:    "REST 请求耗时",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})
	IterationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_iteration_duration_seconds",
		Help:    "单轮迭代耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"instrument"})
)

// UpdateMarketMetrics 更新本轮的行情与库存指标。
func UpdateMarketMetrics(instrument string, mid, volMult, invRatio, posValue float64) {
	MidPrice.WithLabelValues(instrument).Set(mid)
	VolMultiplier.WithLabelValues(instrument).Set(volMult)
	InventoryRatio.WithLabelValues(instrument).Set(invRatio)
	PositionValue.WithLabelValues(instrument).Set(posValue)
}

// RecordPlacement 记录一侧阶梯的提交结果。
func RecordPlacement(instrument, side string, placed, failed, filled int) {
	OrdersPlaced.WithLabelValues(instrument, side).Add(float64(placed))
	OrdersFailed.WithLabelValues(instrument, side).Add(float64(failed))
	OrdersFilled.WithLabelValues(instrument, side).Add(float64(filled))
}

func RecordRiskDenial(instrument, side, reason string) {
	RiskDenials.WithLabelValues(instrument, side, reason).Inc()
}

func RecordReap(instrument string, buy, sell, failed int) {
	OrdersReaped.WithLabelValues(instrument, "buy").Add(float64(buy))
	OrdersReaped.WithLabelValues(instrument, "sell").Add(float64(sell))
	ReapFailures.WithLabelValues(instrument).Add(float64(failed))
}

func RecordIterationError(instrument, stage string) {
	IterationErrors.WithLabelValues(instrument, stage).Inc()
}

func ObserveIteration(instrument string, d time.Duration) {
	IterationDuration.WithLabelValues(instrument).Observe(d.Seconds())
}

// ObserveREST 记录一次 REST 调用；result 为 HTTP 状态码或 "error"。
func ObserveREST(endpoint, result string, d time.Duration) {
	RESTRequests.WithLabelValues(endpoint, result).Inc()
	if d > 0 {
		RESTLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// ServeMetrics 运行 Prometheus 指标服务器直到 ctx 结束；监听失败时返回错误。addr 为空则直接返回。
func ServeMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	if addr == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listen", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("metrics server error", zap.Error(err))
		return fmt.Errorf("metrics server %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}
