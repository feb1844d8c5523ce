package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const shortCookieMaxAge = 10 * 60

// cookieWriter sets and clears the app's HttpOnly cookies with consistent attributes.
type cookieWriter struct {
	Domain string
}

func (c cookieWriter) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clear mirrors the attributes used by set so browsers match the cookie on deletion.
func (c cookieWriter) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// take returns the named cookie's value and clears it. Missing cookies return "".
func (c cookieWriter) take(w http.ResponseWriter, r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	c.clear(w, r, name)
	return ck.Value
}

func (c cookieWriter) rememberReturnTo(w http.ResponseWriter, r *http.Request, path string) {
	c.set(w, r, PostLoginRedirectCookieName, safeRedirectPath(path), shortCookieMaxAge)
}

// postLoginRedirect picks where to go after a successful sign-in: the explicit
// redirect_uri form value, then the cookie the guard left, then home.
func (c cookieWriter) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	fromCookie := c.take(w, r, PostLoginRedirectCookieName)
	if v := r.FormValue("redirect_uri"); v != "" {
		return safeRedirectPath(v)
	}
	return safeRedirectPath(fromCookie)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/". The auth pages themselves are never a destination.
// Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" || strings.ContainsAny(candidate, "\\\r\n") {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	switch u.Path {
	case "/login", "/signup", "/logout":
		return "/"
	}
	return candidate
}

// loginURL is the login page that returns to path afterwards.
func loginURL(path string) string {
	path = safeRedirectPath(path)
	if path == "/" {
		return "/login"
	}
	return "/login?redirect_uri=" + url.QueryEscape(path)
}

// safeRedirectFromURL reduces a full URL (Hx-Current-Url, Referer) to a safe local path.
func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Host != "" && !u.IsAbs()) {
		return ""
	}
	if u.IsAbs() {
		return safeRedirectPath(u.RequestURI())
	}
	return safeRedirectPath(raw)
}
