package historyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0ya-sh0/GoChatRoom/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type brokenStore struct{ store.Memory }

func (b *brokenStore) FetchLatest(context.Context, int) ([]store.Record, error) {
	return nil, store.ErrUnavailable
}

func (b *brokenStore) SaveMessage(context.Context, store.Record) error {
	return errors.New("disk full")
}

func (b *brokenStore) Health(context.Context) bool { return false }

func setupRouter(s store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(zerolog.Nop(), NewHandler(zerolog.Nop(), s))
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) (Response, json.RawMessage) {
	t.Helper()
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return Response{Code: raw.Code, Message: raw.Message}, raw.Data
}

func TestSaveAndLatest(t *testing.T) {
	r := setupRouter(store.NewMemory())

	for _, id := range []string{"a", "b", "c"} {
		rec := performRequest(r, http.MethodPost, "/api/chat/save", map[string]any{
			"id": id, "content": "hello " + id, "author": "Fox", "typeCode": 1, "ownerId": "s01",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("save %s: status %d body %s", id, rec.Code, rec.Body.String())
		}
		if resp, _ := decode(t, rec); resp.Code != 200 {
			t.Fatalf("save %s: code %d", id, resp.Code)
		}
	}

	rec := performRequest(r, http.MethodGet, "/api/chat/latest?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest: status %d", rec.Code)
	}
	_, data := decode(t, rec)
	var records []store.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" || records[1].ID != "c" {
		t.Fatalf("expected [b c] oldest first, got %+v", records)
	}

	rec = performRequest(r, http.MethodGet, "/api/chat/all", nil)
	_, data = decode(t, rec)
	records = nil
	json.Unmarshal(data, &records)
	if len(records) != 3 {
		t.Fatalf("expected all 3 records, got %d", len(records))
	}
}

func TestEmptyStoreReturnsEmptyList(t *testing.T) {
	r := setupRouter(store.NewMemory())
	rec := performRequest(r, http.MethodGet, "/api/chat/latest", nil)
	if _, data := decode(t, rec); string(data) != "[]" {
		t.Fatalf("expected empty list, got %s", data)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	r := setupRouter(store.NewMemory())
	cases := map[string]any{
		"not json":     "plain string",
		"missing id":   map[string]any{"content": "x", "typeCode": 1},
		"unknown type": map[string]any{"id": "a", "content": "x", "typeCode": 9},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := performRequest(r, http.MethodPost, "/api/chat/save", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if resp, _ := decode(t, rec); resp.Code != 400 || resp.Message == "" {
				t.Fatalf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestLatestRejectsBadLimit(t *testing.T) {
	r := setupRouter(store.NewMemory())
	for _, q := range []string{"abc", "0", "-3"} {
		rec := performRequest(r, http.MethodGet, "/api/chat/latest?limit="+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestStoreFailures(t *testing.T) {
	r := setupRouter(&brokenStore{})

	rec := performRequest(r, http.MethodPost, "/api/chat/save", map[string]any{"id": "a", "content": "x", "typeCode": 1})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("save: expected 500, got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodGet, "/api/chat/all", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("all: expected 500, got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodGet, "/api/chat/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health: expected 503, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := performRequest(setupRouter(store.NewMemory()), http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHTTPStoreAgainstRouter(t *testing.T) {
	srv := httptest.NewServer(setupRouter(store.NewMemory()))
	defer srv.Close()

	client := store.NewHTTP(srv.URL+"/api", srv.Client())
	ctx := context.Background()
	if !client.Health(ctx) {
		t.Fatalf("expected healthy service")
	}
	rec := store.Record{ID: "x1", Content: "hi", Author: "Fox", TypeCode: 1, OwnerID: "s01"}
	if err := client.SaveMessage(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := client.FetchLatest(ctx, 50)
	if err != nil || len(got) != 1 || got[0].ID != "x1" || got[0].OwnerID != "s01" {
		t.Fatalf("unexpected fetch %+v %v", got, err)
	}
}
