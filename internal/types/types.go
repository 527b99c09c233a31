// Package types defines the canonical data shapes shared across the
// acquisition, persistence, and serving layers.
package types

import (
	"errors"
	"time"
)

// Side identifies the aggressor side of a trade.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

// MarketBar is one OHLCV candle for a (source, symbol, interval, ts) key.
type MarketBar struct {
	Source   string    `json:"source" db:"source"`
	Symbol   string    `json:"symbol" db:"symbol"`
	Interval string    `json:"interval" db:"interval"`
	TS       time.Time `json:"ts" db:"ts"`
	Open     float64   `json:"open" db:"open"`
	High     float64   `json:"high" db:"high"`
	Low      float64   `json:"low" db:"low"`
	Close    float64   `json:"close" db:"close"`
	Volume   float64   `json:"volume" db:"volume"`
	Provider string    `json:"provider,omitempty" db:"-"`
}

// ErrInvalidBar is returned by Validate when OHLC/volume invariants are violated.
var ErrInvalidBar = errors.New("market bar violates ohlc/volume invariant")

// Validate enforces low <= min(open,close) <= max(open,close) <= high and volume >= 0.
// Rows that fail this are dropped during normalization, not repaired.
func (b MarketBar) Validate() error {
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if b.Low > lo || b.High < hi || b.Volume < 0 {
		return ErrInvalidBar
	}
	return nil
}

// Tick is a single trade or quote update.
type Tick struct {
	TS            time.Time `json:"ts"`
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Volume        float64   `json:"volume"`
	Side          Side      `json:"side"`
	Source        string    `json:"source"`
	TradeID       string    `json:"trade_id,omitempty"`
	IsMarketMaker *bool     `json:"is_market_maker,omitempty"`
}

// OrderBookLevel is a single price/size rung.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds bids sorted strictly descending by price and asks sorted
// strictly ascending. Depth is max(len(Bids), len(Asks)).
type OrderBook struct {
	Symbol string           `json:"symbol"`
	TS     time.Time        `json:"ts"`
	Bids   []OrderBookLevel `json:"bids"`
	Asks   []OrderBookLevel `json:"asks"`
}

// Depth returns max(len(Bids), len(Asks)).
func (ob OrderBook) Depth() int {
	if len(ob.Bids) > len(ob.Asks) {
		return len(ob.Bids)
	}
	return len(ob.Asks)
}

// RowKind tags which normalized-row variant a provider emitted, per the
// "tagged variant of normalized rows" design note.
type RowKind string

const (
	RowKindBar   RowKind = "bar"
	RowKindQuote RowKind = "quote"
	RowKindEvent RowKind = "event"
)

// FetchRequest is the normalized request shape callers pass to adapters
// and the multi-provider manager: (asset, granularity, start, end).
type FetchRequest struct {
	Symbol    string
	Interval  string
	Start     time.Time
	End       time.Time
	Limit     int
	Provider  string
	UseCache  bool
	Extra     map[string]string
}

// CanonicalFetchResult is the contract between adapters and their callers.
type CanonicalFetchResult struct {
	Provider string
	Kind     RowKind
	Bars     []MarketBar
	Ticks    []Tick
	News     []NewsItem
	Funds    []FundamentalsRow
	Request  FetchRequest
}

// ActiveAsset is a tracked asset under backfill/collection management.
type ActiveAsset struct {
	ID          int64     `json:"id" db:"id"`
	Source      string    `json:"source" db:"source"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Intervals   []string  `json:"intervals" db:"-"`
	AssetType   string    `json:"asset_type,omitempty" db:"asset_type"`
	Exchange    string    `json:"exchange,omitempty" db:"exchange"`
	Years       int       `json:"years,omitempty" db:"years"`
	FullHistory bool      `json:"full_history" db:"full_history"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BackfillProgress tracks the historical walk cursor for (asset, interval).
type BackfillProgress struct {
	AssetID     int64     `json:"asset_id" db:"asset_id"`
	Interval    string    `json:"interval" db:"interval"`
	LastCursor  time.Time `json:"last_cursor" db:"last_cursor"`
	TargetStart time.Time `json:"target_start" db:"target_start"`
	TargetEnd   time.Time `json:"target_end" db:"target_end"`
	LastRows    int       `json:"last_rows" db:"last_rows"`
	LastRun     time.Time `json:"last_run" db:"last_run"`
}

// Done reports whether the cursor has reached the target end.
func (p BackfillProgress) Done() bool {
	return !p.LastCursor.Before(p.TargetEnd)
}

// QualityStatus classifies a composite quality score.
type QualityStatus string

const (
	QualityExcellent QualityStatus = "excellent"
	QualityGood      QualityStatus = "good"
	QualityFair      QualityStatus = "fair"
	QualityPoor      QualityStatus = "poor"
)

// Quality component weights. Must sum to 1.0 — enforced at construction
// by quality.NewScorer, not here, since this is a pure data type.
const (
	WeightOutlier      = 0.3
	WeightFreshness    = 0.3
	WeightCompleteness = 0.4
)

// QualityScore is the weighted composite quality assessment for a symbol.
type QualityScore struct {
	Symbol          string        `json:"symbol" db:"symbol"`
	Overall         float64       `json:"overall" db:"overall"`
	OutlierScore    float64       `json:"outlier_score" db:"outlier_score"`
	FreshnessScore  float64       `json:"freshness_score" db:"freshness_score"`
	CompletenessPct float64       `json:"completeness_score" db:"completeness_score"`
	Status          QualityStatus `json:"status" db:"status"`
	Issues          []string      `json:"issues" db:"-"`
	Recommendations []string      `json:"recommendations" db:"-"`
	Timestamp       time.Time     `json:"timestamp" db:"ts"`
	CheckDurationMs float64       `json:"check_duration_ms,omitempty" db:"check_duration_ms"`
}

// FreshnessStatus classifies data staleness.
type FreshnessStatus string

const (
	FreshnessFresh    FreshnessStatus = "fresh"
	FreshnessWarning  FreshnessStatus = "warning"
	FreshnessCritical FreshnessStatus = "critical"
)

// FreshnessResult reports on data staleness relative to an expected frequency.
type FreshnessResult struct {
	Symbol            string          `json:"symbol"`
	LastTS            time.Time       `json:"last_ts"`
	AgeSeconds        float64         `json:"age_seconds"`
	Status            FreshnessStatus `json:"status"`
	GapsDetected      int             `json:"gaps_detected"`
	ExpectedFrequency string          `json:"expected_frequency"`
}

// OutlierMethod names a statistical outlier-detection method.
type OutlierMethod string

const (
	OutlierMethodZScore OutlierMethod = "zscore"
	OutlierMethodIQR    OutlierMethod = "iqr"
	OutlierMethodMAD    OutlierMethod = "mad"
)

// OutlierSeverity classifies the share of flagged points.
type OutlierSeverity string

const (
	OutlierSeverityLow    OutlierSeverity = "low"
	OutlierSeverityMedium OutlierSeverity = "medium"
	OutlierSeverityHigh   OutlierSeverity = "high"
)

// OutlierResult reports outlier detection output for one field.
type OutlierResult struct {
	Field          string          `json:"field"`
	OutlierIndices []int           `json:"outlier_indices"`
	OutlierCount   int             `json:"outlier_count"`
	Method         OutlierMethod   `json:"method"`
	Threshold      float64         `json:"threshold"`
	Severity       OutlierSeverity `json:"severity"`
}

// CompletenessStatus classifies a completeness percentage band.
type CompletenessStatus string

const (
	CompletenessExcellent CompletenessStatus = "excellent"
	CompletenessGood      CompletenessStatus = "good"
	CompletenessFair      CompletenessStatus = "fair"
	CompletenessPoor      CompletenessStatus = "poor"
)

// CompletenessResult reports field- and row-level completeness for a dataset.
type CompletenessResult struct {
	Symbol          string             `json:"symbol"`
	TotalRows       int                `json:"total_rows"`
	CompleteRows    int                `json:"complete_rows"`
	CompletenessPct float64            `json:"completeness_pct"`
	MissingFields   map[string]int     `json:"missing_fields"`
	GapsDetected    int                `json:"gaps_detected"`
	MinPointsMet    bool               `json:"min_points_met"`
	Status          CompletenessStatus `json:"status"`
}

// ProviderHealth is owned exclusively by the multi-provider manager.
type ProviderHealth struct {
	Name         string     `json:"name"`
	Failures     int        `json:"failures"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	CircuitOpen  bool       `json:"circuit_open"`
	CircuitOpenAt *time.Time `json:"circuit_open_at,omitempty"`
}

// NewsItem is a normalized row from the news provider family.
// [SUPPLEMENT] — named in spec.md §1 but not detailed in its data model;
// grounded on original_source/src/api/routes/news.py and newsapi.py.
type NewsItem struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol,omitempty"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   *float64  `json:"sentiment,omitempty"`
}

// FundamentalsRow is a normalized row for the time-series/fundamentals
// provider family. [SUPPLEMENT] — grounded on
// original_source/src/adapters/eodhd.py.
type FundamentalsRow struct {
	Symbol  string                 `json:"symbol"`
	TS      time.Time              `json:"ts"`
	Metric  string                 `json:"metric"`
	Value   float64                `json:"value"`
	Period  string                 `json:"period,omitempty"`
	Sidecar map[string]interface{} `json:"sidecar,omitempty"`
}

// DatasetSplit labels a contiguous, non-overlapping time range.
type DatasetSplit string

const (
	SplitTrain DatasetSplit = "train"
	SplitVal   DatasetSplit = "val"
	SplitTest  DatasetSplit = "test"
)

// SplitBoundary is one row of the dataset_splits table.
type SplitBoundary struct {
	Source   string       `db:"source"`
	Symbol   string       `db:"symbol"`
	Interval string       `db:"interval"`
	Split    DatasetSplit `db:"split"`
	StartTS  time.Time    `db:"start_ts"`
	EndTS    time.Time    `db:"end_ts"`
}
