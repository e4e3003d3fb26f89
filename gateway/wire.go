package gateway

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// 交易所接口中的数值大多以十进制字符串传输。

// wireNum 兼容字符串与数字两种 JSON 表示。
type wireNum float64

func (n *wireNum) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		f, _ := d.Float64()
		*n = wireNum(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = wireNum(f)
	return nil
}

// FloatToWire 把价格/数量格式化为交易所接受的字符串：最多 8 位小数，去掉末尾的 0。
func FloatToWire(v float64) string {
	d := decimal.NewFromFloat(v).Round(8)
	if d.IsZero() {
		return "0"
	}
	return d.String()
}

type infoRequest struct {
	Type string       `json:"type"`
	User string       `json:"user,omitempty"`
	Dex  string       `json:"dex,omitempty"`
	Req  *candleQuery `json:"req,omitempty"`
}

type candleQuery struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

type wireCandle struct {
	OpenTime  int64   `json:"t"`
	CloseTime int64   `json:"T"`
	Symbol    string  `json:"s"`
	Interval  string  `json:"i"`
	Open      wireNum `json:"o"`
	Close     wireNum `json:"c"`
	High      wireNum `json:"h"`
	Low       wireNum `json:"l"`
	Volume    wireNum `json:"v"`
	Trades    int     `json:"n"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Position struct {
			Coin          string  `json:"coin"`
			Szi           wireNum `json:"szi"`
			EntryPx       wireNum `json:"entryPx"`
			UnrealizedPnl wireNum `json:"unrealizedPnl"`
			MarginUsed    wireNum `json:"marginUsed"`
		} `json:"position"`
	} `json:"assetPositions"`
	MarginSummary struct {
		AccountValue wireNum `json:"accountValue"`
	} `json:"marginSummary"`
}

type spotClearinghouseState struct {
	Balances []struct {
		Coin  string  `json:"coin"`
		Total wireNum `json:"total"`
		Hold  wireNum `json:"hold"`
	} `json:"balances"`
}

type wireOpenOrder struct {
	Coin      string  `json:"coin"`
	Side      string  `json:"side"` // B=买 A=卖
	LimitPx   wireNum `json:"limitPx"`
	Sz        wireNum `json:"sz"`
	Oid       int64   `json:"oid"`
	Timestamp int64   `json:"timestamp"`
}
