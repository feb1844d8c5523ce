package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/target/studentdash/internal/domain/model"
	apperrors "github.com/target/studentdash/internal/errors"
	"github.com/target/studentdash/internal/session"
)

const (
	msgProfileUpdateFailed  = "Failed to update profile. Please try again."
	msgVerifySendFailed     = "Failed to send verification email. Please try again."
	msgPasswordUpdateFailed = "Failed to update password. Please try again."
	msgAccountDeleteFailed  = "Failed to delete account. Please try again."
	msgNewPasswordsMismatch = "New passwords do not match"
)

func profileMeta() PageMeta {
	return PageMeta{Title: "Profile - Student Dashboard", PageTitle: "Your Profile", CurrentPage: PageProfile}
}

func settingsMeta() PageMeta {
	return PageMeta{Title: "Settings - Student Dashboard", PageTitle: "Account Settings", CurrentPage: PageSettings}
}

// withFallback replaces the generic unknown message with a page-specific one.
// Specific messages, such as rate limiting, are kept.
func withFallback(err error, fallback string) error {
	appErr := session.Normalize(err)
	if appErr.Code == apperrors.ErrCodeUnknown && appErr.UserMessage() == apperrors.DefaultMessage(apperrors.ErrCodeUnknown) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnknown, fallback)
	}
	return appErr
}

// credentialField turns a wrong current password into a message on that field.
func credentialField(err error, field, message string) error {
	if apperrors.GetCode(err) == apperrors.ErrCodeInvalidCredentials {
		return apperrors.ValidationField(field, message)
	}
	return err
}

// profileData gathers the profile card. Empty when the browser is signed out.
func profileData(r *http.Request) map[string]any {
	data := map[string]any{}
	client, ok := ClientFromContext(r.Context())
	if !ok {
		return data
	}
	ident := client.Session.Snapshot().Identity
	if ident == nil {
		return data
	}
	p := client.Profile.Snapshot()
	data["Identity"] = ident
	data["Profile"] = p
	data["Initials"] = client.Profile.Initials()
	data["DefaultAvatarURL"] = client.Profile.DefaultAvatarURL()
	data["DisplayName"] = p.DisplayName
	data["AvatarURL"] = p.AvatarURL
	return data
}

// Profile renders the profile card and form.
func (h *UIHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	b := NewTemplateData(r, profileMeta())
	for k, v := range profileData(r) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// UpdateProfile saves the display name and avatar. A submitted empty avatar clears
// it; a form without the field leaves it unchanged.
func (h *UIHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	displayName := strings.TrimSpace(r.PostFormValue("displayName"))
	var avatar *string
	if _, sent := r.PostForm["avatarUrl"]; sent {
		v := strings.TrimSpace(r.PostForm.Get("avatarUrl"))
		avatar = &v
	}

	if err := client.Profile.UpdateProfile(r.Context(), &displayName, avatar); err != nil {
		data := profileData(r)
		data["DisplayName"] = displayName
		data["AvatarURL"] = r.PostFormValue("avatarUrl")
		RenderError(ErrorOpts{
			W: w, R: r, Err: withFallback(err, msgProfileUpdateFailed),
			Renderer: h.renderForm, PageMeta: profileMeta(), Data: data,
		})
		return
	}

	triggerToast(w, "Profile updated successfully.", "success")
	b := NewTemplateData(r, profileMeta()).WithSuccess("Profile updated successfully.")
	for k, v := range profileData(r) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// SendVerification mails a verification link to the signed-in user.
func (h *UIHandlers) SendVerification(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	if err := client.Session.SendVerificationEmail(r.Context()); err != nil {
		RenderError(ErrorOpts{
			W: w, R: r, Err: withFallback(err, msgVerifySendFailed),
			Renderer: h.renderForm, PageMeta: profileMeta(), Data: profileData(r),
		})
		return
	}
	b := NewTemplateData(r, profileMeta()).WithSuccess("Verification email sent. Please check your inbox.")
	for k, v := range profileData(r) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// preferenceItem is one settings toggle.
type preferenceItem struct {
	Name        string
	Label       string
	Description string
	Enabled     bool
}

func preferenceItems(p model.Preferences) []preferenceItem {
	return []preferenceItem{
		{string(model.PrefEmailNotifications), "Email notifications", "Receive email about your account activity.", p.EmailNotifications},
		{string(model.PrefStudentUpdates), "Student updates", "Get notified when student records you change are saved.", p.StudentUpdates},
		{string(model.PrefMarketingEmails), "Marketing emails", "Receive news and product announcements.", p.MarketingEmails},
		{string(model.PrefCompactView), "Compact view", "Show the student roster with less spacing.", p.CompactView},
	}
}

func (h *UIHandlers) settingsData(r *http.Request, prefs model.Preferences) map[string]any {
	hasPassword := false
	if ident := sessionState(r).Identity; ident != nil {
		hasPassword = ident.HasPassword()
	}
	return map[string]any{
		"HasPassword":       hasPassword,
		"Preferences":       preferenceItems(prefs),
		"MinPasswordLength": h.minPasswordLength(),
	}
}

func (h *UIHandlers) minPasswordLength() int {
	if h.MinPasswordLength > 0 {
		return h.MinPasswordLength
	}
	return 6
}

// Settings renders password, preference and account deletion sections.
func (h *UIHandlers) Settings(w http.ResponseWriter, r *http.Request) {
	b := NewTemplateData(r, settingsMeta())
	for k, v := range h.settingsData(r, preferencesFrom(r.Context())) {
		b.With(k, v)
	}
	h.renderPage(w, r, b.Build())
}

// settingsError re-renders settings with err scoped to one section of the page.
func (h *UIHandlers) settingsError(w http.ResponseWriter, r *http.Request, section string, err error) {
	data := h.settingsData(r, preferencesFrom(r.Context()))
	data["ErrorSection"] = section
	RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderForm, PageMeta: settingsMeta(), Data: data})
}

// ChangePassword checks the new password locally, then re-authenticates with the
// current one through the identity provider.
func (h *UIHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	current := r.PostFormValue("currentPassword")
	next := r.PostFormValue("newPassword")

	var err error
	switch {
	case next != r.PostFormValue("confirmPassword"):
		err = apperrors.ValidationFailed(map[string]string{"confirmPassword": msgNewPasswordsMismatch})
	case len(next) < h.minPasswordLength():
		err = apperrors.ValidationFailed(map[string]string{
			"newPassword": "New password must be at least " + strconv.Itoa(h.minPasswordLength()) + " characters long",
		})
	default:
		err = client.Session.ChangePassword(r.Context(), current, next)
		err = credentialField(err, "currentPassword", "Current password is incorrect")
	}
	if err != nil {
		h.settingsError(w, r, "password", withFallback(err, msgPasswordUpdateFailed))
		return
	}

	triggerToast(w, "Password updated successfully.", "success")
	b := NewTemplateData(r, settingsMeta()).WithSuccess("Password updated successfully.")
	for k, v := range h.settingsData(r, preferencesFrom(r.Context())) {
		b.With(k, v)
	}
	b.With("SuccessSection", "password")
	h.renderPage(w, r, b.Build())
}

// DeleteAccount deletes the signed-in account and its stored preferences.
func (h *UIHandlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	client, ok := requireClient(w, r)
	if !ok {
		return
	}
	userID := currentUserID(r)
	err := client.Session.DeleteAccount(r.Context(), r.PostFormValue("deletePassword"))
	if err != nil {
		err = credentialField(err, "deletePassword", "Password is incorrect")
		h.settingsError(w, r, "delete", withFallback(err, msgAccountDeleteFailed))
		return
	}
	if h.Prefs != nil && userID != "" {
		if cerr := h.Prefs.Clear(r.Context(), userID); cerr != nil {
			h.logger().WarnContext(r.Context(), "clear preferences of deleted account failed", "error", cerr)
		}
	}
	seeOther(w, r, "/")
}

// SetPreference stores one toggle. htmx gets the refreshed preference section back.
func (h *UIHandlers) SetPreference(w http.ResponseWriter, r *http.Request) {
	if h.Prefs == nil {
		http.NotFound(w, r)
		return
	}
	value, _ := strconv.ParseBool(r.PostFormValue("value"))
	prefs, err := h.Prefs.Set(r.Context(), currentUserID(r), r.PostFormValue("name"), value)
	if err != nil {
		if IsHTMX(r) {
			triggerToast(w, session.Normalize(err).UserMessage(), "error")
			w.WriteHeader(DetermineErrorStatus(err))
			return
		}
		h.settingsError(w, r, "preferences", err)
		return
	}

	if !IsHTMX(r) {
		seeOther(w, r, "/settings")
		return
	}
	triggerToast(w, "Preferences saved.", "success")
	data := NewTemplateData(r, settingsMeta()).With("Preferences", preferenceItems(prefs)).Build()
	if err := h.T.RenderNamed(w, "preferences-form", data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "preferences fragment")
	}
}
