// Package loadtest fires concurrent sales at a running API and checks that
// stock accounting survived the contention.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL  string // e.g. http://localhost:8080/api/v1
	ItemID   string
	Workers  int
	Duration time.Duration
	Quantity int // units per invoice
	Client   *http.Client
}

// Report summarizes one run. Oversold is true when the final stock does not
// equal the starting stock minus the units on accepted invoices.
type Report struct {
	Duration      time.Duration
	Total         int64
	Created       int64
	Rejected      int64 // 409 insufficient stock
	Failed        int64
	StartingStock int
	FinalStock    int
	UnitsSold     int64
	Oversold      bool
}

func (r Report) RPS() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Total) / r.Duration.Seconds()
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏱️  Duration: %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "📈 Requests: %d (%.0f rps)\n", r.Total, r.RPS())
	fmt.Fprintf(&b, "✅ Created: %d\n", r.Created)
	fmt.Fprintf(&b, "⛔ Rejected (insufficient stock): %d\n", r.Rejected)
	fmt.Fprintf(&b, "❌ Failed: %d\n", r.Failed)
	fmt.Fprintf(&b, "📦 Stock: %d -> %d (%d sold)\n", r.StartingStock, r.FinalStock, r.UnitsSold)
	if r.Oversold {
		b.WriteString("🚨 Stock does not match accepted sales\n")
	} else {
		b.WriteString("👍 Stock matches accepted sales\n")
	}
	return b.String()
}

type itemView struct {
	ID            string          `json:"id"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
}

// Run sells cfg.Quantity units per request from cfg.Workers goroutines until
// cfg.Duration elapses, ctx ends, or stock runs out.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Quantity < 1 {
		cfg.Quantity = 1
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: cfg.Workers,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	before, err := fetchItem(ctx, cfg.Client, base, cfg.ItemID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"customer_name": "Load Test",
		"payment_mode":  "Cash",
		"status":        "completed",
		"items": []map[string]interface{}{{
			"item_id":        cfg.ItemID,
			"quantity":       cfg.Quantity,
			"selected_price": before.SellingPrice,
		}},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	var (
		total, created, rejected, failed atomic.Int64
		soldOut                          atomic.Bool
		wg                               sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil && !soldOut.Load() {
				total.Add(1)
				status, err := post(ctx, cfg.Client, base+"/invoices", payload)
				switch {
				case err != nil:
					if ctx.Err() == nil {
						failed.Add(1)
					} else {
						total.Add(-1)
					}
				case status == http.StatusCreated:
					created.Add(1)
				case status == http.StatusConflict:
					rejected.Add(1)
					soldOut.Store(true)
				default:
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := fetchItem(context.Background(), cfg.Client, base, cfg.ItemID)
	if err != nil {
		return nil, err
	}

	sold := created.Load() * int64(cfg.Quantity)
	return &Report{
		Duration:      elapsed,
		Total:         total.Load(),
		Created:       created.Load(),
		Rejected:      rejected.Load(),
		Failed:        failed.Load(),
		StartingStock: before.StockQuantity,
		FinalStock:    after.StockQuantity,
		UnitsSold:     sold,
		Oversold:      int64(before.StockQuantity)-sold != int64(after.StockQuantity),
	}, nil
}

func fetchItem(ctx context.Context, client *http.Client, base, id string) (*itemView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/items/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch item %s: status %d", id, resp.StatusCode)
	}
	var item itemView
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func post(ctx context.Context, client *http.Client, url string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
