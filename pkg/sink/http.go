package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-migrator/pkg/extract"
	"github.com/ruslano69/tdtp-migrator/pkg/loader"
	"github.com/ruslano69/tdtp-migrator/pkg/product"
)

// ErrHTTPStatus - целевая система ответила не 2xx
var ErrHTTPStatus = errors.New("destination HTTP error")

// HTTP отправляет товар в API целевой системы: POST {baseURL}/api/productos?dryRun=
type HTTP struct {
	baseURL    string
	defaults   product.Defaults
	httpClient *http.Client
}

// NewHTTP создает HTTP sink. timeout <= 0 - 10 секунд.
func NewHTTP(baseURL string, timeout time.Duration, defaults product.Defaults) (*HTTP, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("http sink: invalid base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		baseURL:    base,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (h *HTTP) Contract() Contract { return ContractHTTP }

func (h *HTTP) Write(ctx context.Context, row extract.Row, dryRun bool) (loader.Result, error) {
	req, err := product.ToCreateRequest(row, h.defaults)
	if err != nil {
		return loader.Fail(err.Error()), nil
	}
	resp, err := h.Create(ctx, req, dryRun)
	if err != nil {
		return loader.Result{}, err
	}
	if !resp.Success {
		return loader.Fail(resp.Message), nil
	}
	outcome := loader.OutcomeCreated
	if dryRun {
		outcome = loader.OutcomeDryRun
	}
	r := loader.Ok(outcome, resp.Message)
	r.ID = resp.ID
	return r, nil
}

// Create выполняет POST /api/productos
func (h *HTTP) Create(ctx context.Context, payload *product.CreateRequest, dryRun bool) (*product.CreateResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal product request: %w", err)
	}

	endpoint := h.baseURL + "/api/productos?dryRun=" + strconv.FormatBool(dryRun)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: HTTP %d creating product: %s", ErrHTTPStatus, resp.StatusCode, detail)
	}

	var out product.CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}
	return &out, nil
}
