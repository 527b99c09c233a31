package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/secrets"
	"github.com/fks/market-data/internal/types"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// NewNewsAPI builds the news adapter. [SUPPLEMENT] family named in
// spec.md §1 ("news") but not detailed in its data model; grounded on
// original_source/src/api/routes/news.py and newsapi.py.
func NewNewsAPI(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "newsapi",
		BaseURL:         newsAPIBaseURL,
		RateLimitPerSec: 1,
		CacheTTL:        5 * time.Minute,
		BuildRequest:    newsAPIBuildRequestFunc(deps.Secrets),
		Normalize:       newsAPINormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

func newsAPIBuildRequestFunc(sp secrets.Provider) func(context.Context, types.FetchRequest) (adapter.BuiltRequest, error) {
	return func(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
		query := map[string]string{"q": req.Symbol, "sortBy": "publishedAt"}
		headers := map[string]string{"Accept": "application/json"}
		if sp != nil {
			if key, ok := sp.GetAPIKey("newsapi"); ok {
				headers["X-Api-Key"] = key
			}
		}
		return adapter.BuiltRequest{
			Method:  http.MethodGet,
			URL:     fmt.Sprintf("%s/everything", newsAPIBaseURL),
			Query:   query,
			Headers: headers,
		}, nil
	}
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
}

func newsAPINormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var resp newsAPIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("newsapi: malformed payload: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return types.CanonicalFetchResult{}, fmt.Errorf("newsapi: provider status %q", resp.Status)
	}

	items := make([]types.NewsItem, 0, len(resp.Articles))
	for i, a := range resp.Articles {
		publishedAt, err := NormalizeTimestampString(a.PublishedAt)
		if err != nil {
			continue
		}
		items = append(items, types.NewsItem{
			ID:          fmt.Sprintf("newsapi:%s:%d", req.Symbol, i),
			Symbol:      req.Symbol,
			Headline:    a.Title,
			Summary:     a.Description,
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: publishedAt,
		})
	}

	return types.CanonicalFetchResult{Kind: types.RowKindEvent, News: items, Request: req}, nil
}
