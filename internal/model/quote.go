package model

import (
	"fmt"
	"time"
)

// DailyQuote represents one instrument's price record for a single trading day
type DailyQuote struct {
	Symbol    string    `json:"symbol" db:"symbol"`
	TradeDate time.Time `json:"trade_date" db:"trade_date"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	PrevClose float64   `json:"prev_close" db:"prev_close"`
	Change    float64   `json:"change" db:"change"`
	PctChange float64   `json:"pct_change" db:"pct_change"`
	Volume    float64   `json:"volume" db:"volume"`
	Amount    float64   `json:"amount" db:"amount"`
}

// Validate checks the quote against the price-ordering contract. A quote is
// valid when all prices are non-negative, high >= low, and open/close fall
// within [low, high].
func (q DailyQuote) Validate() error {
	if q.Symbol == "" {
		return fmt.Errorf("quote has empty symbol")
	}
	if q.TradeDate.IsZero() {
		return fmt.Errorf("quote for %s has zero trade date", q.Symbol)
	}
	if q.Open < 0 || q.High < 0 || q.Low < 0 || q.Close < 0 {
		return fmt.Errorf("quote for %s on %s has negative price", q.Symbol, q.TradeDate.Format("2006-01-02"))
	}
	if q.High < q.Low {
		return fmt.Errorf("quote for %s on %s has high %.4f below low %.4f", q.Symbol, q.TradeDate.Format("2006-01-02"), q.High, q.Low)
	}
	if q.Open < q.Low || q.Open > q.High {
		return fmt.Errorf("quote for %s on %s has open %.4f outside [%.4f, %.4f]", q.Symbol, q.TradeDate.Format("2006-01-02"), q.Open, q.Low, q.High)
	}
	if q.Close < q.Low || q.Close > q.High {
		return fmt.Errorf("quote for %s on %s has close %.4f outside [%.4f, %.4f]", q.Symbol, q.TradeDate.Format("2006-01-02"), q.Close, q.Low, q.High)
	}
	return nil
}

// QuoteQuery represents a query for stored daily quotes
type QuoteQuery struct {
	Symbol    string     `json:"symbol" form:"symbol" binding:"required"`
	StartDate *time.Time `json:"start_date" form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `json:"end_date" form:"end_date" time_format:"2006-01-02"`
	Limit     *int       `json:"limit" form:"limit"`
}
