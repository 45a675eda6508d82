package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/gridx/internal/value"
	"github.com/oakwood-commons/gridx/pkg/logger"
)

// HTTPClient talks JSON to the quoting platform's API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     *logr.Logger
}

// NewHTTPClient builds a client for the given base URL. timeout bounds each
// request on top of whatever deadline the caller's context carries.
func NewHTTPClient(baseURL string, timeout time.Duration, log *logr.Logger) *HTTPClient {
	if log == nil {
		log = logger.GetNoopLogger()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) FetchLineItems(ctx context.Context, importID string) ([]RowRecord, error) {
	var out struct {
		LineItems []RowRecord `json:"lineItems"`
	}
	path := fmt.Sprintf("/imports/%s/line-items", url.PathEscape(importID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch line items: %w", err)
	}
	return out.LineItems, nil
}

func (c *HTTPClient) PatchRow(ctx context.Context, rowID string, changes map[string]value.Value) error {
	body := map[string]any{"changes": changes}
	path := fmt.Sprintf("/line-items/%s", url.PathEscape(rowID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("patch row %s: %w", rowID, err)
	}
	return nil
}

func (c *HTTPClient) PatchBulk(ctx context.Context, updates []RowUpdate) error {
	body := map[string]any{"updates": updates}
	if err := c.do(ctx, http.MethodPatch, "/line-items", body, nil); err != nil {
		return fmt.Errorf("patch bulk (%d rows): %w", len(updates), err)
	}
	return nil
}

func (c *HTTPClient) BulkCreate(ctx context.Context, importID string, count int) ([]RowRecord, error) {
	var out struct {
		LineItems []RowRecord `json:"lineItems"`
	}
	body := map[string]any{"parentId": importID, "count": count}
	path := fmt.Sprintf("/imports/%s/line-items/bulk-create", url.PathEscape(importID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("bulk create %d rows: %w", count, err)
	}
	return out.LineItems, nil
}

func (c *HTTPClient) BulkDelete(ctx context.Context, ids []string) error {
	body := map[string]any{"ids": ids}
	if err := c.do(ctx, http.MethodPost, "/line-items/bulk-delete", body, nil); err != nil {
		return fmt.Errorf("bulk delete (%d rows): %w", len(ids), err)
	}
	return nil
}

func (c *HTTPClient) FetchFieldConfigs(ctx context.Context) ([]FieldConfig, error) {
	var out struct {
		Fields []FieldConfig `json:"fields"`
	}
	if err := c.do(ctx, http.MethodGet, "/field-configs", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch field configs: %w", err)
	}
	return out.Fields, nil
}

func (c *HTTPClient) SaveFieldConfig(ctx context.Context, cfg FieldConfig) error {
	path := fmt.Sprintf("/field-configs/%s", url.PathEscape(cfg.Key))
	if err := c.do(ctx, http.MethodPut, path, cfg, nil); err != nil {
		return fmt.Errorf("save field config %s: %w", cfg.Key, err)
	}
	return nil
}

func (c *HTTPClient) FetchLookupTables(ctx context.Context) ([]TableRecord, error) {
	var out struct {
		Tables []TableRecord `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/lookup-tables", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch lookup tables: %w", err)
	}
	return out.Tables, nil
}

// do issues one JSON request. Non-2xx responses become *StatusError with the
// response body attached (truncated for logging).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.log.V(1).Info("backend request failed", "method", method, "path", path, "status", resp.StatusCode)
		return serr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
