package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tiffinstash/ops-front/internal/authflow"
	"github.com/tiffinstash/ops-front/internal/cookie"
	"github.com/tiffinstash/ops-front/internal/log"
)

// pendingCookieTTL matches the pending-login record lifetime
const pendingCookieTTL = 10 * time.Minute

// AuthHandlers provides the login and logout HTTP handlers
type AuthHandlers struct {
	flow        *authflow.Flow
	serviceName string
	sessionTTL  time.Duration
}

// NewAuthHandlers creates auth handlers with dependency injection
func NewAuthHandlers(flow *authflow.Flow, serviceName string, sessionTTL time.Duration) *AuthHandlers {
	return &AuthHandlers{
		flow:        flow,
		serviceName: serviceName,
		sessionTTL:  sessionTTL,
	}
}

// loginMessages maps the error codes the callback redirects with to the
// text shown on the login page. Deliberately vague where the detail
// would help an attacker; specific where the user can act on it.
var loginMessages = map[string]string{
	"denied":              "Sign-in was cancelled. Try again when ready.",
	"state":               "Sign-in session expired or was invalid. Please try again.",
	"exchange":            "Could not complete sign-in with Google. Please try again.",
	"profile":             "Could not fetch your Google profile. Please try again.",
	"domain":              "This dashboard is limited to Tiffinstash workspace accounts.",
	"invalid_credentials": "Invalid username or password.",
	"sso_unavailable":     "Google sign-in is not available right now.",
	"logged_out":          "You have been signed out.",
}

// LoginPageHandler renders the login page. The SSO button only appears
// when an OAuth client is configured; the password form is always there.
func (h *AuthHandlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	// Already signed in? Straight to the dashboard.
	if sessionID, err := cookie.GetSession(r); err == nil {
		if _, err := h.flow.CurrentSession(r.Context(), sessionID); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}

	data := LoginPageData{
		ServiceName: h.serviceName,
		SSOEnabled:  h.flow.SSOEnabled(),
	}
	if code := r.URL.Query().Get("message"); code != "" {
		if msg, ok := loginMessages[code]; ok {
			data.Message = msg
			if code == "logged_out" {
				data.MessageType = "info"
			} else {
				data.MessageType = "error"
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPageTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render login page: %v", err)
	}
}

// GoogleLoginHandler starts the OAuth round trip
func (h *AuthHandlers) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	authURL, pendingID, err := h.flow.BeginSSO(r.Context())
	if err != nil {
		if errors.Is(err, authflow.ErrNotConfigured) {
			h.redirectToLogin(w, r, "sso_unavailable")
			return
		}
		log.LogError("Failed to start SSO login: %v", err)
		h.redirectToLogin(w, r, "exchange")
		return
	}

	cookie.SetPendingLogin(w, pendingID, pendingCookieTTL)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler finishes the OAuth round trip. Every failure lands
// back on the login page with a coded message; no session is created on
// any failure path.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	pendingID, _ := cookie.GetPendingLogin(r)
	cookie.ClearPendingLogin(w)

	query := r.URL.Query()
	sess, err := h.flow.CompleteSSO(r.Context(), authflow.CallbackParams{
		PendingID: pendingID,
		Code:      query.Get("code"),
		State:     query.Get("state"),
		ErrorCode: query.Get("error"),
	})
	if err != nil {
		h.redirectToLogin(w, r, callbackErrorCode(err))
		return
	}

	cookie.SetSession(w, sess.ID, h.sessionTTL)
	http.Redirect(w, r, "/", http.StatusFound)
}

func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, authflow.ErrCallbackDenied):
		return "denied"
	case errors.Is(err, authflow.ErrStateMismatch):
		return "state"
	case errors.Is(err, authflow.ErrTokenExchange):
		return "exchange"
	case errors.Is(err, authflow.ErrProfileFetch):
		return "profile"
	case errors.Is(err, authflow.ErrDomainRejected):
		return "domain"
	case errors.Is(err, authflow.ErrNotConfigured):
		return "sso_unavailable"
	default:
		return "exchange"
	}
}

// PasswordLoginHandler authenticates the fallback credential from the
// login form.
func (h *AuthHandlers) PasswordLoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectToLogin(w, r, "invalid_credentials")
		return
	}

	sess, err := h.flow.PasswordLogin(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		h.redirectToLogin(w, r, "invalid_credentials")
		return
	}

	cookie.SetSession(w, sess.ID, h.sessionTTL)
	http.Redirect(w, r, "/", http.StatusFound)
}

// LogoutHandler destroys the session and returns to the login page
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := cookie.GetSession(r); err == nil {
		if err := h.flow.Logout(r.Context(), sessionID); err != nil {
			log.LogError("Failed to delete session on logout: %v", err)
		}
	}

	cookie.ClearSession(w)
	h.redirectToLogin(w, r, "logged_out")
}

// DashboardHandler renders the landing page for a signed-in user
type DashboardHandler struct {
	serviceName   string
	ordersEnabled bool
}

// NewDashboardHandler creates the dashboard landing page handler
func NewDashboardHandler(serviceName string, ordersEnabled bool) *DashboardHandler {
	return &DashboardHandler{serviceName: serviceName, ordersEnabled: ordersEnabled}
}

// ServeHTTP implements http.Handler. Requires the auth middleware to
// have attached a session.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := DashboardPageData{
		ServiceName:    h.serviceName,
		DisplayName:    sess.DisplayName(),
		Email:          sess.Profile.Email,
		LoginMethod:    string(sess.Method),
		SessionExpires: sess.ExpiresAt.Format("15:04 MST"),
		OrdersEnabled:  h.ordersEnabled,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardPageTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render dashboard: %v", err)
	}
}

func (h *AuthHandlers) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?message="+url.QueryEscape(code), http.StatusFound)
}
