package gateway

import (
	"context"

	"github.com/pkg/errors"

	"hyperliquid-mm/config"
)

// UnresolvedAsset 表示配置未给出资产 id，需在下单前调用 ResolveAsset。
const UnresolvedAsset = -1

// ErrUnknownMarket meta 中找不到对应的市场。
var ErrUnknownMarket = errors.New("market not found in exchange meta")

type metaResponse struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int32  `json:"szDecimals"`
	} `json:"universe"`
}

type spotMetaResponse struct {
	Universe []struct {
		Name  string `json:"name"`
		Index int    `json:"index"`
	} `json:"universe"`
}

// perpDexs 第一项为 null，代表主永续 dex。
type perpDexEntry struct {
	Name string `json:"name"`
}

// Meta 返回永续 universe 中的市场名，下标即 meta index。
func (c *InfoClient) Meta(ctx context.Context, dex string) ([]string, error) {
	var raw metaResponse
	if err := c.post(ctx, infoRequest{Type: "meta", Dex: dex}, &raw); err != nil {
		return nil, err
	}
	out := make([]string, len(raw.Universe))
	for i, u := range raw.Universe {
		out[i] = u.Name
	}
	return out, nil
}

// SpotMeta 返回 现货市场名→spot index。
func (c *InfoClient) SpotMeta(ctx context.Context) (map[string]int, error) {
	var raw spotMetaResponse
	if err := c.post(ctx, infoRequest{Type: "spotMeta"}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw.Universe))
	for _, u := range raw.Universe {
		out[u.Name] = u.Index
	}
	return out, nil
}

// PerpDexs 返回 dex 名称列表，下标即 perp dex 序号（0 为主 dex，名称为空）。
func (c *InfoClient) PerpDexs(ctx context.Context) ([]string, error) {
	var raw []*perpDexEntry
	if err := c.post(ctx, infoRequest{Type: "perpDexs"}, &raw); err != nil {
		return nil, err
	}
	out := make([]string, len(raw))
	for i, d := range raw {
		if d != nil {
			out[i] = d.Name
		}
	}
	return out, nil
}

// ResolveAssetID 按市场名查询交易所 meta 得到下单用的资产 id：
// 永续为 meta index，现货为 10000+spot index，HIP-3 dex 永续为 100000+dex 序号*10000+meta index。
func ResolveAssetID(ctx context.Context, info *InfoClient, m Market) (int, error) {
	if m.Spot {
		spots, err := info.SpotMeta(ctx)
		if err != nil {
			return 0, err
		}
		if idx, ok := spots[m.Symbol]; ok {
			return config.SpotAssetOffset + idx, nil
		}
		return 0, errors.Wrapf(ErrUnknownMarket, "spot %s", m.Symbol)
	}

	base := 0
	if m.Dex != "" {
		dexes, err := info.PerpDexs(ctx)
		if err != nil {
			return 0, err
		}
		pos := -1
		for i, name := range dexes {
			if i > 0 && name == m.Dex {
				pos = i
				break
			}
		}
		if pos < 0 {
			return 0, errors.Wrapf(ErrUnknownMarket, "dex %s", m.Dex)
		}
		base = config.DexAssetOffset + pos*config.SpotAssetOffset
	}

	names, err := info.Meta(ctx, m.Dex)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if name == m.Coin || name == m.Symbol {
			return base + i, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownMarket, "perp %s", m.Coin)
}

// ResolveAsset 资产 id 未配置时查询 meta 并写回 Market；已配置的 id 直接保留。
func (i *Instrument) ResolveAsset(ctx context.Context) error {
	if i.Market.AssetID != UnresolvedAsset {
		return nil
	}
	id, err := ResolveAssetID(ctx, i.Info, i.Market)
	if err != nil {
		return errors.Wrap(err, "resolve asset id")
	}
	i.Market.AssetID = id
	return nil
}
