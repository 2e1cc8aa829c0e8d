package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// upstreams stands in for Notion, the webhook receiver and Google's
// OAuth endpoints.
type upstreams struct {
	notion  *httptest.Server
	webhook *httptest.Server
	google  *httptest.Server

	mu       sync.Mutex
	email    string
	pages    []createdPage
	webhooks []map[string]any
}

type createdPage struct {
	ID         string
	DatabaseID string
	Properties map[string]any
}

func newUpstreams() *upstreams {
	u := &upstreams{email: "ana@example.com"}
	u.notion = httptest.NewServer(http.HandlerFunc(u.serveNotion))
	u.webhook = httptest.NewServer(http.HandlerFunc(u.serveWebhook))
	u.google = httptest.NewServer(http.HandlerFunc(u.serveGoogle))
	return u
}

func (u *upstreams) Close() {
	u.notion.Close()
	u.webhook.Close()
	u.google.Close()
}

// SignInAs sets the account the fake provider reports next.
func (u *upstreams) SignInAs(email string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.email = email
}

func (u *upstreams) Pages() []createdPage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]createdPage(nil), u.pages...)
}

func (u *upstreams) Webhooks() []map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]any(nil), u.webhooks...)
}

func (u *upstreams) serveNotion(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret_e2e" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"object": "error", "code": "unauthorized", "message": "API token is invalid."})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/pages":
		var req struct {
			Parent struct {
				DatabaseID string `json:"database_id"`
			} `json:"parent"`
			Properties map[string]any `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"object": "error", "code": "invalid_json", "message": err.Error()})
			return
		}
		u.mu.Lock()
		page := createdPage{
			ID:         fmt.Sprintf("page-%d", len(u.pages)+1),
			DatabaseID: req.Parent.DatabaseID,
			Properties: req.Properties,
		}
		u.pages = append(u.pages, page)
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": page.ID})

	case r.Method == http.MethodPost && r.URL.Path == "/databases/consulting-db/query":
		results := []any{}
		u.mu.Lock()
		for i := len(u.pages) - 1; i >= 0; i-- {
			if p := u.pages[i]; p.DatabaseID == "consulting-db" {
				results = append(results, map[string]any{"object": "page", "id": p.ID, "properties": p.Properties})
				break
			}
		}
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": results, "has_more": false})

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"object": "error", "code": "object_not_found", "message": "not found"})
	}
}

func (u *upstreams) serveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	u.webhooks = append(u.webhooks, payload)
	u.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (u *upstreams) serveGoogle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth":
		// Consent is implicit: send the browser straight back.
		q := r.URL.Query()
		back, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			http.Error(w, "bad redirect_uri", http.StatusBadRequest)
			return
		}
		bq := back.Query()
		bq.Set("code", "e2e-code")
		bq.Set("state", q.Get("state"))
		back.RawQuery = bq.Encode()
		http.Redirect(w, r, back.String(), http.StatusFound)

	case "/token":
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "e2e-code" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "e2e-token", "token_type": "Bearer", "expires_in": 3600})

	case "/userinfo":
		if r.Header.Get("Authorization") != "Bearer e2e-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		u.mu.Lock()
		email := u.email
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"email": email, "email_verified": true})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
