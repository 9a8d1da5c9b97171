package store

import (
	"context"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/market"
)

// Provider adapts an IndicatorStore to the market.Provider interface so
// the pipelines can run against locally imported data.
func Provider(s IndicatorStore) market.Provider {
	return market.ProviderFunc(func(ctx context.Context, stockCode string, mkt market.Type, days int) (*market.Dataset, error) {
		rows, err := s.GetIndicatorRows(ctx, stockCode, mkt)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, apperrors.NewDataError(stockCode, string(mkt), "no indicator rows", apperrors.ErrDataNotFound)
		}
		return &market.Dataset{
			StockCode: stockCode,
			Market:    mkt,
			Rows:      rows,
		}, nil
	})
}
