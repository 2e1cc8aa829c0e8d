package handlers

import (
	"errors"
	"net/http"
	"time"

	"invoice-desk/internal/auth"
	"invoice-desk/internal/logctx"
)

const (
	// NonceCookieName holds the per-browser value bound into the OAuth state.
	NonceCookieName = "oauth_nonce"
	nonceCookiePath = "/auth/google"
	// SignInWindow bounds how long a visitor may spend at the provider.
	SignInWindow = 10 * time.Minute
)

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error string
}

var loginErrors = map[string]string{
	"cancelled": "Sign-in was cancelled.",
	"state":     "Your sign-in link expired. Please try again.",
	"provider":  "We could not verify your Google account. Please try again.",
	"internal":  "An error occurred. Please try again.",
}

// LoginPage renders the sign-in page.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if user, ok := h.currentUser(w, r); ok && h.policy.Allows(user.Email) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render(w, r, "login.html", LoginViewModel{Error: loginErrors[r.URL.Query().Get("error")]})
}

// GoogleLogin starts the OAuth flow. The state is signed and bound to a
// nonce cookie so the callback can only complete in the same browser.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	logger := logctx.Logger(r.Context())

	nonce, err := auth.GenerateSessionToken()
	if err != nil {
		logger.Error("nonce generation failed", "error", err)
		http.Redirect(w, r, "/login?error=internal", http.StatusFound)
		return
	}
	state, err := h.states.Issue(nonce, r.URL.Query().Get("next"))
	if err != nil {
		logger.Error("state signing failed", "error", err)
		http.Redirect(w, r, "/login?error=internal", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     NonceCookieName,
		Value:    nonce,
		Path:     nonceCookiePath,
		MaxAge:   int(SignInWindow.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the OAuth flow. The access policy is applied
// here so users outside it never get a session.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logctx.Logger(r.Context())
	q := r.URL.Query()

	// The nonce is single use.
	var nonce string
	if c, err := r.Cookie(NonceCookieName); err == nil {
		nonce = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     NonceCookieName,
		Path:     nonceCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if q.Get("error") != "" {
		logger.Info("sign-in cancelled at provider", "reason", q.Get("error"))
		http.Redirect(w, r, "/login?error=cancelled", http.StatusFound)
		return
	}

	returnTo, err := h.states.Verify(q.Get("state"), nonce)
	if err != nil {
		logger.Warn("oauth state rejected", "error", err)
		http.Redirect(w, r, "/login?error=state", http.StatusFound)
		return
	}

	identity, err := h.provider.Identify(r.Context(), q.Get("code"))
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			logger.Warn("sign-in with unverified email")
		} else {
			logger.Error("oauth exchange failed", "error", err)
		}
		http.Redirect(w, r, "/login?error=provider", http.StatusFound)
		return
	}

	if !h.policy.Allows(identity.Email) {
		logger.Warn("sign-in denied", "email", identity.Email)
		http.Redirect(w, r, "/unauthorized", http.StatusFound)
		return
	}

	user, err := h.db.UpsertUser(identity.Email)
	if err != nil {
		logger.Error("user upsert failed", "error", err)
		http.Redirect(w, r, "/login?error=internal", http.StatusFound)
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		logger.Error("session token generation failed", "error", err)
		http.Redirect(w, r, "/login?error=internal", http.StatusFound)
		return
	}
	if err := h.db.CreateSession(token, user.ID, time.Now().Add(h.sessionDuration)); err != nil {
		logger.Error("session creation failed", "error", err)
		http.Redirect(w, r, "/login?error=internal", http.StatusFound)
		return
	}

	h.setSessionCookie(w, token)
	logger.Info("signed in", "email", user.Email)
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(cookie.Value); err != nil {
			logctx.Logger(r.Context()).Error("session delete failed", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
