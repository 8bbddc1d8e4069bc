// Package woocommerce provides a content source adapter over the
// WordPress/WooCommerce REST API surface exposed by the store plugin.
// It translates paginated JSON listings of products, pages, policies
// and FAQs into content units for the indexing pipeline.
package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.ContentSource = (*Source)(nil)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the store API.
type Config struct {
	// BaseURL is the store API root, e.g. https://shop.example.com/wp-json/answercart/v1.
	BaseURL string

	// Token is the bearer token issued to the plugin (required).
	Token string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Source pulls content units from the store REST API.
type Source struct {
	client  *http.Client
	baseURL string
	token   string
}

// contentRecord is the wire format of one content unit.
type contentRecord struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	URL        string `json:"url"`
	Language   string `json:"language"`
	ModifiedAt string `json:"modified_at"`
}

// listResponse is the wire format of one page.
type listResponse struct {
	Items   []contentRecord `json:"items"`
	HasMore bool            `json:"has_more"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a store content source.
func New(cfg Config) (*Source, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("woocommerce: base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("woocommerce: token is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Source{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}, nil
}

// Fetch returns one page of content units.
func (s *Source) Fetch(ctx context.Context, req driven.FetchRequest) (*driven.ContentPage, error) {
	params := url.Values{}
	params.Set("type", string(req.SourceType))
	params.Set("limit", strconv.Itoa(req.Limit))
	params.Set("offset", strconv.Itoa(req.Offset))
	if req.ForceRescan {
		params.Set("force", "1")
	}

	var resp listResponse
	if err := s.getJSON(ctx, "/content?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, resp.Error.Message)
	}

	units := make([]domain.ContentUnit, 0, len(resp.Items))
	for _, item := range resp.Items {
		units = append(units, toUnit(item))
	}

	return &driven.ContentPage{
		Units:      units,
		HasMore:    resp.HasMore,
		NextOffset: req.Offset + len(resp.Items),
	}, nil
}

// Get retrieves a single unit by source ID.
func (s *Source) Get(ctx context.Context, sourceID string) (*domain.ContentUnit, error) {
	var record contentRecord
	err := s.getJSON(ctx, "/content/"+url.PathEscape(sourceID), &record)
	if err != nil {
		return nil, err
	}
	if record.SourceID == "" {
		return nil, domain.ErrNotFound
	}
	unit := toUnit(record)
	return &unit, nil
}

// Types lists the source types the store serves.
func (s *Source) Types() []domain.SourceType {
	return domain.AllSourceTypes()
}

// getJSON performs an authenticated GET and decodes the body.
func (s *Source) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// toUnit converts a wire record to a domain content unit.
func toUnit(r contentRecord) domain.ContentUnit {
	modified, _ := time.Parse(time.RFC3339, r.ModifiedAt)
	return domain.ContentUnit{
		SourceID:       r.SourceID,
		SourceType:     domain.SourceType(r.SourceType),
		Title:          r.Title,
		RawText:        r.Text,
		URL:            r.URL,
		Language:       r.Language,
		LastModifiedAt: modified,
	}
}

// Close releases resources.
func (s *Source) Close() error {
	return nil
}
