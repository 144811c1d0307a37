package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/market-data-sync/internal/model"

	"go.uber.org/zap"
)

const (
	apiDateLayout = "20060102"

	apiDaily      = "daily"
	apiStockBasic = "stock_basic"
)

// MarketClient handles communication with the upstream market-data API. The
// upstream speaks a single POST endpoint taking an api name, an auth token,
// and a parameter map, and answers with a column/row table.
type MarketClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMarketClient creates a new upstream market-data client
func NewMarketClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *MarketClient {
	return &MarketClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string            `json:"fields"`
		Items  [][]json.RawMessage `json:"items"`
	} `json:"data"`
}

// FetchDailyQuotes retrieves all instruments' daily price rows for one
// trading day.
func (c *MarketClient) FetchDailyQuotes(ctx context.Context, date time.Time) ([]model.DailyQuote, error) {
	resp, err := c.call(ctx, apiDaily, map[string]string{
		"trade_date": date.Format(apiDateLayout),
	}, "ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}

	return c.decodeQuotes(resp)
}

// FetchSymbolHistory retrieves one instrument's daily price rows in
// [start, end].
func (c *MarketClient) FetchSymbolHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyQuote, error) {
	resp, err := c.call(ctx, apiDaily, map[string]string{
		"ts_code":    symbol,
		"start_date": start.Format(apiDateLayout),
		"end_date":   end.Format(apiDateLayout),
	}, "ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}

	return c.decodeQuotes(resp)
}

// FetchInstruments retrieves the full instrument registry listing.
func (c *MarketClient) FetchInstruments(ctx context.Context) ([]model.Instrument, error) {
	resp, err := c.call(ctx, apiStockBasic, map[string]string{}, "ts_code,name,exchange,list_date,delist_date,list_status")
	if err != nil {
		return nil, err
	}

	idx := fieldIndex(resp.Data.Fields)
	instruments := make([]model.Instrument, 0, len(resp.Data.Items))
	for i, row := range resp.Data.Items {
		var inst model.Instrument
		var listStatus string

		if err := decodeString(row, idx, "ts_code", &inst.Symbol); err != nil {
			c.logger.Warn("Skipping malformed instrument row", zap.Int("row", i), zap.Error(err))
			continue
		}
		decodeString(row, idx, "name", &inst.Name)
		decodeString(row, idx, "exchange", &inst.Exchange)
		decodeString(row, idx, "list_status", &listStatus)

		var listDate string
		decodeString(row, idx, "list_date", &listDate)
		if t, err := time.Parse(apiDateLayout, listDate); err == nil {
			inst.ListDate = t
		}

		var delistDate string
		decodeString(row, idx, "delist_date", &delistDate)
		if t, err := time.Parse(apiDateLayout, delistDate); err == nil {
			inst.DelistDate = &t
		}

		inst.IsActive = listStatus == "L"
		instruments = append(instruments, inst)
	}

	return instruments, nil
}

// call performs one upstream request and decodes the envelope. Upstream
// errors are surfaced with the upstream's own message text so the gateway
// can classify them.
func (c *MarketClient) call(ctx context.Context, apiName string, params map[string]string, fields string) (*apiResponse, error) {
	body, err := json.Marshal(apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Calling upstream API", zap.String("api", apiName))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to call upstream API",
			zap.Error(err),
			zap.String("api", apiName))
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("Upstream API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("api", apiName),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("upstream returned status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Error("Failed to decode upstream response",
			zap.Error(err),
			zap.String("api", apiName))
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}

	if decoded.Code != 0 {
		c.logger.Error("Upstream API rejected call",
			zap.Int("code", decoded.Code),
			zap.String("api", apiName),
			zap.String("msg", decoded.Msg))
		return nil, fmt.Errorf("upstream error %d: %s", decoded.Code, decoded.Msg)
	}

	return &decoded, nil
}

// decodeQuotes converts the upstream row table into DailyQuote values.
// Rows failing the validation contract are dropped and logged, not fatal.
func (c *MarketClient) decodeQuotes(resp *apiResponse) ([]model.DailyQuote, error) {
	idx := fieldIndex(resp.Data.Fields)

	quotes := make([]model.DailyQuote, 0, len(resp.Data.Items))
	dropped := 0
	for i, row := range resp.Data.Items {
		var q model.DailyQuote
		var tradeDate string

		if err := decodeString(row, idx, "ts_code", &q.Symbol); err != nil {
			c.logger.Warn("Skipping malformed quote row", zap.Int("row", i), zap.Error(err))
			dropped++
			continue
		}
		if err := decodeString(row, idx, "trade_date", &tradeDate); err != nil {
			c.logger.Warn("Skipping malformed quote row", zap.Int("row", i), zap.Error(err))
			dropped++
			continue
		}

		t, err := time.Parse(apiDateLayout, tradeDate)
		if err != nil {
			c.logger.Warn("Skipping quote with unparseable trade date",
				zap.Int("row", i),
				zap.String("trade_date", tradeDate))
			dropped++
			continue
		}
		q.TradeDate = t

		decodeFloat(row, idx, "open", &q.Open)
		decodeFloat(row, idx, "high", &q.High)
		decodeFloat(row, idx, "low", &q.Low)
		decodeFloat(row, idx, "close", &q.Close)
		decodeFloat(row, idx, "pre_close", &q.PrevClose)
		decodeFloat(row, idx, "change", &q.Change)
		decodeFloat(row, idx, "pct_chg", &q.PctChange)
		decodeFloat(row, idx, "vol", &q.Volume)
		decodeFloat(row, idx, "amount", &q.Amount)

		if err := q.Validate(); err != nil {
			c.logger.Warn("Dropping invalid quote", zap.Error(err))
			dropped++
			continue
		}

		quotes = append(quotes, q)
	}

	if dropped > 0 {
		c.logger.Warn("Dropped invalid rows from upstream response",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(quotes)))
	}

	return quotes, nil
}

func fieldIndex(fields []string) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return idx
}

func decodeString(row []json.RawMessage, idx map[string]int, field string, out *string) error {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return fmt.Errorf("missing field %q", field)
	}
	if string(row[i]) == "null" {
		*out = ""
		return nil
	}
	if err := json.Unmarshal(row[i], out); err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}
	return nil
}

func decodeFloat(row []json.RawMessage, idx map[string]int, field string, out *float64) error {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return fmt.Errorf("missing field %q", field)
	}
	if string(row[i]) == "null" {
		*out = 0
		return nil
	}
	if err := json.Unmarshal(row[i], out); err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}
	return nil
}
