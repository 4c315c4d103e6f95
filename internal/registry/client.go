// Package registry provides the client for the remote registry that
// holds project, module, and processor definitions plus build
// bookkeeping. The registry is the durable source of truth: settings
// documents are derived from it every cycle and run records outlive
// any single manager process.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/name2020117/gridflow/internal/faults"
)

// Literal status codes used by registry forms. A form's enablement
// field {form}_complete carries "1" while a record is being edited and
// "2" once it is marked complete; only complete records take effect.
const (
	StatusIncomplete = "1"
	StatusComplete   = "2"

	// LabelComplete is the display label of StatusComplete, returned
	// when exporting with labels instead of raw codes.
	LabelComplete = "Complete"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "gridflow-manager/1.0"
)

// Record is one flat field map exported from or imported into the
// registry.
type Record map[string]string

// ExportOptions narrows an export to specific fields, forms, or
// records. Empty slices mean no filtering on that axis.
type ExportOptions struct {
	Fields  []string
	Forms   []string
	Records []string

	// Labels requests display labels instead of raw codes for choice
	// fields.
	Labels bool
}

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the narrow interface the manager consumes the remote
// registry through. The wire protocol and storage model behind it are
// external concerns.
type Client interface {
	// Export returns the records matching the options.
	Export(ctx context.Context, opts ExportOptions) ([]Record, error)

	// Import writes records into the registry and returns the count
	// acknowledged by the server.
	Import(ctx context.Context, records []Record) (int, error)

	// Forms returns the enumerable form names defined by the registry.
	Forms(ctx context.Context) ([]string, error)
}

// CompleteField returns the enablement field name for a form.
func CompleteField(form string) string {
	return form + "_complete"
}

// httpClient implements Client against the registry's HTTP API:
// form-encoded POST requests authenticated by token, JSON responses.
type httpClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// ClientOption configures the HTTP client.
type ClientOption func(*httpClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *httpClient) {
		h.client = c
	}
}

// WithTimeout sets the request timeout on the underlying client.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *httpClient) {
		h.client.Timeout = d
	}
}

// NewHTTPClient creates a registry client for the given endpoint and
// access token.
func NewHTTPClient(endpoint, token string, opts ...ClientOption) Client {
	h := &httpClient{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Export returns the records matching the options.
func (h *httpClient) Export(ctx context.Context, opts ExportOptions) ([]Record, error) {
	form := url.Values{}
	form.Set("content", "record")
	form.Set("action", "export")
	form.Set("format", "json")
	if opts.Labels {
		form.Set("rawOrLabel", "label")
	}
	setIndexed(form, "fields", opts.Fields)
	setIndexed(form, "forms", opts.Forms)
	setIndexed(form, "records", opts.Records)

	body, err := h.post(ctx, form)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, faults.Wrap(faults.KindRegistry, err, "failed to parse export response")
	}
	return records, nil
}

// Import writes records and returns the acknowledged count. A response
// without a count is a registry fault: the write cannot be assumed
// durable.
func (h *httpClient) Import(ctx context.Context, records []Record) (int, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal records: %w", err)
	}

	form := url.Values{}
	form.Set("content", "record")
	form.Set("action", "import")
	form.Set("format", "json")
	form.Set("overwriteBehavior", "normal")
	form.Set("data", string(data))

	body, err := h.post(ctx, form)
	if err != nil {
		return 0, err
	}

	var ack struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(body, &ack); err != nil || ack.Count == nil {
		return 0, faults.Registry("import not acknowledged: %s", string(body))
	}
	return *ack.Count, nil
}

// Forms returns the registry's form names.
func (h *httpClient) Forms(ctx context.Context) ([]string, error) {
	form := url.Values{}
	form.Set("content", "form")
	form.Set("format", "json")

	body, err := h.post(ctx, form)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		FormName string `json:"form_name"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, faults.Wrap(faults.KindRegistry, err, "failed to parse forms response")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.FormName)
	}
	return names, nil
}

// post sends one form-encoded request and returns the response body.
func (h *httpClient) post(ctx context.Context, form url.Values) ([]byte, error) {
	form.Set("token", h.token)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, h.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.KindRegistry, err, "registry request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.KindRegistry, err, "failed to read registry response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, faults.Registry(
			"registry returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// setIndexed encodes a slice as fields[0], fields[1], ... form keys.
func setIndexed(form url.Values, key string, values []string) {
	for i, v := range values {
		form.Set(key+"["+strconv.Itoa(i)+"]", v)
	}
}
