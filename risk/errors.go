package risk

import (
	"errors"
	"fmt"
)

// ErrRiskDenied 是所有风控否决的根错误；否决不是故障，调用方跳过该侧并记录日志。
var ErrRiskDenied = errors.New("risk denied")

var (
	ErrOpenOrderSlots    = fmt.Errorf("%w: open order slots exhausted", ErrRiskDenied)
	ErrOpenOrderLimit    = fmt.Errorf("%w: max open orders reached", ErrRiskDenied)
	ErrPositionLimit     = fmt.Errorf("%w: position limit", ErrRiskDenied)
	ErrCoinRatioLimit    = fmt.Errorf("%w: coin ratio limit", ErrRiskDenied)
	ErrInsufficientQuote = fmt.Errorf("%w: insufficient quote balance", ErrRiskDenied)
	ErrInsufficientCoin  = fmt.Errorf("%w: insufficient coin balance", ErrRiskDenied)
)

// IsDenied reports whether err is a risk gate veto.
func IsDenied(err error) bool {
	return errors.Is(err, ErrRiskDenied)
}

// Reason 返回用于日志/指标标签的简短原因。
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOpenOrderSlots):
		return "open_order_slots"
	case errors.Is(err, ErrOpenOrderLimit):
		return "open_order_limit"
	case errors.Is(err, ErrPositionLimit):
		return "position_limit"
	case errors.Is(err, ErrCoinRatioLimit):
		return "coin_ratio"
	case errors.Is(err, ErrInsufficientQuote):
		return "insufficient_quote"
	case errors.Is(err, ErrInsufficientCoin):
		return "insufficient_coin"
	default:
		return "other"
	}
}
