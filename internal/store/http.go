package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const API_CODE_OK = 200

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTP is a Store backed by the history service's REST API.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP builds a client for the service at baseURL, e.g.
// http://localhost:8124/api. A nil client gets a 10s timeout default.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(baseURL, "/") + "/chat", client: client}
}

func (h *HTTP) SaveMessage(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/save", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = h.do(req)
	return err
}

func (h *HTTP) FetchLatest(ctx context.Context, limit int) ([]Record, error) {
	endpoint := h.base + "/all"
	if limit > 0 {
		endpoint = h.base + "/latest?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	data, err := h.do(req)
	if err != nil {
		return nil, err
	}
	var records []Record
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	}
	return records, nil
}

func (h *HTTP) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/health", nil)
	if err != nil {
		return false
	}
	_, err = h.do(req)
	return err == nil
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *HTTP) do(req *http.Request) (json.RawMessage, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: status %d: undecodable body", ErrUnavailable, resp.StatusCode)
	}
	switch {
	case out.Code == API_CODE_OK:
		return out.Data, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecord, out.Message)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, out.Message)
	}
}
