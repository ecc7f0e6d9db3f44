package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/scrub"
)

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	h := NewServer(nil, WithVersion("1.2.3")).Routes()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "1.2.3", out["version"])
	assert.Equal(t, []interface{}{"name", "place", "identifier", "date", "digits"}, out["categories"])
}

func TestNormalizeSingle(t *testing.T) {
	h := NewServer(nil).Routes()

	rec := do(t, h, http.MethodPost, "/v1/notes/normalize",
		`{"id":"n1","text":"Pt seen at [**Hospital1**] at 10:30 AM, [**Unknown**]"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp noteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "n1", resp.ID)
	assert.Equal(t, "patient seen at t_hospital at t_forenoon, [**Unknown**]", resp.Text)
	assert.Equal(t, 2, resp.Summary.Markers)
	assert.Equal(t, 1, resp.Summary.Unresolved)
	assert.Equal(t, map[string]int{"t_hospital": 1}, resp.Summary.Resolved)
}

func TestNormalizeEmptyText(t *testing.T) {
	h := NewServer(nil).Routes()
	rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", decodeBody(t, rec)["text"])
}

func TestNormalizeBatch(t *testing.T) {
	h := NewServer(nil).Routes()

	rec := do(t, h, http.MethodPost, "/v1/notes/normalize",
		`{"notes":[{"id":"a","text":"[**2151-7-16**]"},{"id":"b","text":"45 y/o"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Notes []noteResponse `json:"notes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Notes, 2)
	assert.Equal(t, "t_fulldate", resp.Notes[0].Text)
	assert.Equal(t, "45 t_year_old", resp.Notes[1].Text)
}

func TestNormalizeBadRequests(t *testing.T) {
	h := NewServer(nil).Routes()
	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty object", `{}`, "invalid_request"},
		{"not json", `Pt seen`, "invalid_json"},
		{"unknown field", `{"note":"x"}`, "invalid_json"},
		{"both forms", `{"text":"x","notes":[{"text":"y"}]}`, "invalid_request"},
		{"note without text", `{"notes":[{"id":"a"}]}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/notes/normalize", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.code, decodeBody(t, rec)["error"])
		})
	}
}

func TestNormalizeBodyTooLarge(t *testing.T) {
	h := NewServer(nil, WithMaxBodyBytes(64)).Routes()
	body := `{"text":"` + strings.Repeat("x", 200) + `"}`
	rec := do(t, h, http.MethodPost, "/v1/notes/normalize", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "too_large", decodeBody(t, rec)["error"])
}

func TestExplain(t *testing.T) {
	h := NewServer(nil).Routes()

	rec := do(t, h, http.MethodPost, "/v1/notes/explain", `{"text":"[**Hospital1**] [** **] [**84**] AM [**Mystery**]"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp explainResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "t_hospital  [**84**] AM [**Mystery**]", resp.Text)
	require.Len(t, resp.Decisions, 2)
	// Empty markers are dropped by the first pass.
	assert.Equal(t, "name", resp.Decisions[0].Category)
	assert.Equal(t, "[** **]", resp.Decisions[0].Marker)
	assert.Equal(t, "", resp.Decisions[0].Output)
	assert.Equal(t, "place", resp.Decisions[1].Category)
	assert.Equal(t, "[**Hospital1**]", resp.Decisions[1].Marker)
	assert.Equal(t, "t_hospital", resp.Decisions[1].Output)
	assert.Equal(t, 1, resp.Unresolved)
}

func TestRules(t *testing.T) {
	p, err := scrub.New(classifier.WithEnabledCategories([]string{"date"}))
	require.NoError(t, err)
	h := NewServer(p).Routes()

	rec := do(t, h, http.MethodGet, "/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rf classifier.RuleFile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rf))
	require.Len(t, rf.Categories, 1)
	assert.Equal(t, "date", rf.Categories[0].Name)
	assert.Equal(t, "t_fulldate", rf.Categories[0].Rules[0].Token)
}

func TestAPIKeys(t *testing.T) {
	h := NewServer(nil, WithAPIKeys([]string{"secret-1"})).Routes()

	rec := do(t, h, http.MethodGet, "/v1/rules", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/rules", "", "X-Notescrub-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/rules", "", "X-Notescrub-Key", "secret-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/rules", "", "Authorization", "Bearer secret-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRateLimit(t *testing.T) {
	h := NewServer(nil, WithRateLimiter(NewRateLimiter(1000, 2))).Routes()

	codes := map[int]int{}
	for i := 0; i < 6; i++ {
		rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":"pt"}`)
		codes[rec.Code]++
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}
	assert.LessOrEqual(t, codes[http.StatusOK], 3)
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 3)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/v1/notes/normalize", strings.NewReader(`{"text":"pt"}`))
	req.RemoteAddr = "10.0.0.9:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	rl := NewRateLimiter(100000, 1)
	h := NewServer(nil, WithRateLimiter(rl)).Routes()

	ok := 0
	for i := 0; i < 50; i++ {
		rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":"pt"}`,
			"X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i), "X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		if rec.Code == http.StatusOK {
			ok++
		}
	}
	assert.Equal(t, 1, ok, "rotating forwarded headers does not open new buckets")
	assert.Equal(t, 1, rl.Clients())
}

func TestRateLimit_TrustedProxyUsesForwardedFor(t *testing.T) {
	rl := NewRateLimiter(100000, 1)
	h := NewServer(nil, WithRateLimiter(rl), WithTrustedProxy(true)).Routes()

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":"pt"}`, "X-Forwarded-For", ip)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
	rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":"pt"}`, "X-Forwarded-For", "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, rl.Clients())
}

func TestRequestIDHeaderIsAccepted(t *testing.T) {
	h := NewServer(nil).Routes()
	rec := do(t, h, http.MethodPost, "/v1/notes/normalize", `{"text":"pt"}`, "X-Request-Id", "abc")
	assert.Equal(t, http.StatusOK, rec.Code)
}
