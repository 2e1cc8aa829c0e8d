package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"invoice-desk/internal/access"
	"invoice-desk/internal/auth"
	"invoice-desk/internal/logctx"
	"invoice-desk/internal/models"
	"invoice-desk/internal/storage"
	"invoice-desk/internal/submission"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long sessions last when Deps leaves it unset (30 days).
	DefaultSessionDuration = 30 * 24 * time.Hour
)

// IdentityProvider signs users in with an external account.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*auth.Identity, error)
}

// Submitter runs ledger submissions.
type Submitter interface {
	Submit(ctx context.Context, email string, payload []byte) (*submission.Result, error)
}

// InvoiceNumberer suggests the next invoice number.
type InvoiceNumberer interface {
	Next(ctx context.Context) (string, error)
}

// Deps are the collaborators Handlers needs.
type Deps struct {
	DB              *storage.DB
	TemplateDir     string
	SecureCookie    bool
	SessionDuration time.Duration
	Policy          *access.Policy
	Provider        IdentityProvider
	States          *auth.StateSigner
	Submissions     Submitter
	Invoices        InvoiceNumberer
	Logger          *slog.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db              *storage.DB
	templateDir     string
	secureCookie    bool
	sessionDuration time.Duration
	policy          *access.Policy
	provider        IdentityProvider
	states          *auth.StateSigner
	submissions     Submitter
	invoices        InvoiceNumberer
	logger          *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Deps) *Handlers {
	if d.SessionDuration <= 0 {
		d.SessionDuration = DefaultSessionDuration
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handlers{
		db:              d.DB,
		templateDir:     d.TemplateDir,
		secureCookie:    d.SecureCookie,
		sessionDuration: d.SessionDuration,
		policy:          d.Policy,
		provider:        d.Provider,
		states:          d.States,
		submissions:     d.Submissions,
		invoices:        d.Invoices,
		logger:          d.Logger,
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps page handlers to require a signed-in, allowed user.
// Signed-out visitors go to /login and users outside the access policy go
// to /unauthorized.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if !h.policy.Allows(user.Email) {
			logctx.Logger(r.Context()).Warn("access denied", "email", user.Email, "path", r.URL.Path)
			http.Redirect(w, r, "/unauthorized", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIAuthMiddleware is AuthMiddleware for JSON endpoints: both a missing
// session and a denied user get a 401.
func (h *Handlers) APIAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !h.policy.Allows(user.Email) {
			logctx.Logger(r.Context()).Warn("access denied", "email", user.Email, "path", r.URL.Path)
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser resolves the session cookie. It also implements rolling
// sessions: a session past the halfway point of its lifetime is renewed.
func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	sessionInfo, err := h.db.ValidateSessionWithInfo(cookie.Value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logctx.Logger(r.Context()).Error("session lookup failed", "error", err)
		}
		// Invalid or expired session, clear the cookie
		h.clearSessionCookie(w)
		return nil, false
	}

	now := time.Now()
	if sessionInfo.ExpiresAt.Sub(now) < h.sessionDuration/2 {
		newExpiresAt := now.Add(h.sessionDuration)
		if err := h.db.RenewSession(cookie.Value, newExpiresAt); err == nil {
			h.setSessionCookie(w, cookie.Value)
		} else {
			// Keep going on the current session
			logctx.Logger(r.Context()).Warn("session renewal failed", "error", err)
		}
	}
	return sessionInfo.User, true
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// HomeViewModel is the data passed to the home page.
type HomeViewModel struct {
	Email             string
	NextInvoiceNumber string
}

// Home shows who is signed in and the suggested invoice number.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	vm := HomeViewModel{Email: user.Email}
	if next, err := h.invoices.Next(r.Context()); err == nil {
		vm.NextInvoiceNumber = next
	} else {
		logctx.Logger(r.Context()).Error("invoice number lookup failed", "error", err)
	}
	h.render(w, r, "home.html", vm)
}

// Unauthorized renders the page shown to users outside the access policy.
func (h *Handlers) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "unauthorized.html", nil)
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	logger := logctx.Logger(r.Context())
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, "base.html"), filepath.Join(h.templateDir, viewName))
	if err != nil {
		logger.Error("template parse failed", "view", viewName, "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	if err := tmpl.ExecuteTemplate(w, target, data); err != nil {
		logger.Error("template execution failed", "view", viewName, "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
