//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-settlements/app/types"
)

const defaultSettlementsHTTPBase = "http://localhost:48080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func TestSettlementsE2E(t *testing.T) {
	httpBase := os.Getenv("SETTLEMENTS_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultSettlementsHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)

	t.Run("Health", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var payload types.HealthResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload.Status != "ok" {
			t.Fatalf("unexpected health payload: %+v", payload)
		}
	})

	t.Run("StartSettlementMissingRequestID", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, httpBase+"/settlements", bytes.NewReader([]byte(`{"buyer_ref":"buyer-1","product_id":"prod-1"}`)))
		if err != nil {
			t.Fatalf("new request failed: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing x-request-id, got %d", resp.StatusCode)
		}
	})

	t.Run("StartSettlementValidation", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/settlements", map[string]any{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid start request, got %d", resp.StatusCode)
		}
	})

	t.Run("StartSettlementUnknownProduct", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/settlements", map[string]any{
			"request_id": fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
			"buyer_ref":  "e2e-buyer",
			"product_id": "missing-product",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown product, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("GetSettlementNotFound", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/settlements/999999999", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("GetSettlementInvalidID", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/settlements/not-a-number", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("ApprovalUnknownHash", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/settlements/approval/e2e-unknown-hash/cancel", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("EntitlementUnknownProduct", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/products/missing-product/entitlement", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})
}
