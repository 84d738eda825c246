package cookie

import (
	"net/http"
	"time"

	"github.com/tiffinstash/ops-front/internal/envutil"
	"github.com/tiffinstash/ops-front/internal/log"
)

// Cookie names used by ops-front. Both carry opaque identifiers only;
// session contents live server-side in the session store.
const (
	SessionCookie      = "ops_session"
	PendingLoginCookie = "ops_login"
)

// SetSession sets the session cookie with appropriate security settings
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge":   maxAge.String(),
		"secure":   secure,
		"sameSite": "Lax",
	})
}

// SetPendingLogin sets the pending-login cookie for the OAuth redirect
// round trip. SameSite must be Lax: the callback arrives as a top-level
// cross-site navigation from the provider.
func SetPendingLogin(w http.ResponseWriter, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     PendingLoginCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// ClearSession removes the session cookie
func ClearSession(w http.ResponseWriter) {
	Clear(w, SessionCookie)
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// ClearPendingLogin removes the pending-login cookie
func ClearPendingLogin(w http.ResponseWriter) {
	Clear(w, PendingLoginCookie)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}

// GetPendingLogin retrieves the pending-login cookie value
func GetPendingLogin(r *http.Request) (string, error) {
	return Get(r, PendingLoginCookie)
}
