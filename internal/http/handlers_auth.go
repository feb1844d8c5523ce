package httpx

import (
	"net/http"
	"strings"

	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/ports"
	"github.com/target/studentdash/internal/service"
	"github.com/target/studentdash/internal/session"
)

const msgPasswordsDoNotMatch = "Passwords do not match"

func loginMeta() PageMeta {
	return PageMeta{Title: "Sign in - Student Dashboard", PageTitle: "Sign in", CurrentPage: PageLogin}
}

func signupMeta() PageMeta {
	return PageMeta{Title: "Create account - Student Dashboard", PageTitle: "Create account", CurrentPage: PageSignup}
}

// authFormData carries the values an auth page re-renders with. Passwords are never echoed.
func (h *UIHandlers) authFormData(r *http.Request) map[string]any {
	return map[string]any{
		"Email":            strings.TrimSpace(r.FormValue("email")),
		"RedirectURI":      safeRedirectPath(r.FormValue("redirect_uri")),
		"FederatedEnabled": h.FederatedEnabled,
		"FederatedLabel":   h.FederatedLabel,
	}
}

// requireClient returns the browser's auth client or answers 503.
func requireClient(w http.ResponseWriter, r *http.Request) (*service.AuthClient, bool) {
	c, ok := ClientFromContext(r.Context())
	if !ok {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return c, true
}

// LoginPage renders the sign-in form. Signed-in users go straight to their destination.
func (h *UIHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.authPage(w, r, loginMeta())
}

// SignupPage renders the sign-up form.
func (h *UIHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.authPage(w, r, signupMeta())
}

func (h *UIHandlers) authPage(w http.ResponseWriter, r *http.Request, meta PageMeta) {
	if sessionState(r).SignedIn() {
		seeOther(w, r, safeRedirectPath(r.FormValue("redirect_uri")))
		return
	}
	b := NewTemplateData(r, meta)
	for k, v := range h.authFormData(r) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

func requiredCredentials(email, password string) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return apperrors.ValidationFailed(fields)
	}
	return nil
}

// Login signs in with email and password.
func (h *UIHandlers) Login(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	err := requiredCredentials(email, password)
	if err == nil {
		err = client.Session.SignIn(r.Context(), email, password)
	}
	if err != nil {
		RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderForm, PageMeta: loginMeta(), Data: h.authFormData(r)})
		return
	}
	seeOther(w, r, h.cookies().postLoginRedirect(w, r))
}

// Signup creates a password account. A confirmation mismatch fails locally.
func (h *UIHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	err := requiredCredentials(email, password)
	if err == nil && password != r.PostFormValue("confirmPassword") {
		err = apperrors.ValidationFailed(map[string]string{"confirmPassword": msgPasswordsDoNotMatch})
	}
	if err == nil {
		err = client.Session.SignUp(r.Context(), email, password)
	}
	if err != nil {
		RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderForm, PageMeta: signupMeta(), Data: h.authFormData(r)})
		return
	}
	seeOther(w, r, h.cookies().postLoginRedirect(w, r))
}

// callbackURL is where the identity provider sends the browser back to.
func (h *UIHandlers) callbackURL(r *http.Request) string {
	base := strings.TrimRight(h.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if isSecureRequest(r) {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/auth/callback"
}

// FederatedBegin starts the federated flow: state and nonce go into short-lived
// cookies and the browser is sent to the identity provider.
func (h *UIHandlers) FederatedBegin(w http.ResponseWriter, r *http.Request) {
	if !h.FederatedEnabled {
		http.NotFound(w, r)
		return
	}
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	fr, err := client.Session.BeginFederated(r.Context(), h.callbackURL(r))
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin federated login failed", "error", err)
		RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderForm, PageMeta: loginMeta(), Data: h.authFormData(r)})
		return
	}

	ck := h.cookies()
	ck.set(w, r, oauthStateCookieName, fr.State, shortCookieMaxAge)
	ck.set(w, r, oauthNonceCookieName, fr.Nonce, shortCookieMaxAge)
	if v := r.FormValue("redirect_uri"); v != "" {
		ck.rememberReturnTo(w, r, v)
	}
	seeOther(w, r, fr.AuthURL)
}

// FederatedCallback completes the federated flow. State checking and the provider's
// own error parameter are handled by the identity provider.
func (h *UIHandlers) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	ck := h.cookies()
	q := r.URL.Query()
	in := ports.ExchangeInput{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		Nonce:         ck.take(w, r, oauthNonceCookieName),
		ExpectedState: ck.take(w, r, oauthStateCookieName),
		ProviderError: q.Get("error"),
	}
	if err := client.Session.CompleteFederated(r.Context(), in); err != nil {
		h.logger().InfoContext(r.Context(), "federated login failed", "error", err)
		RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderForm, PageMeta: loginMeta(), Data: h.authFormData(r)})
		return
	}
	seeOther(w, r, ck.postLoginRedirect(w, r))
}

// VerifyEmail consumes a verification link.
func (h *UIHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.Verifier.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		appErr := session.Normalize(err)
		h.renderMessage(w, r, DetermineErrorStatus(appErr), "Email verification", appErr.UserMessage())
		return
	}
	h.renderMessage(w, r, http.StatusOK, "Email verification", "Your email address has been verified.")
}

// Logout signs the browser out. The browser keeps its session cookie.
func (h *UIHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	if err := client.Session.SignOut(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "sign out failed", "error", err)
		triggerToast(w, session.Normalize(err).UserMessage(), "error")
	}
	seeOther(w, r, "/login")
}
