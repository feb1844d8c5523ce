package httpx

// Page identifiers used in templates and navigation.
const (
	PageHome        = "home"
	PageStudents    = "students"
	PageStudent     = "student"
	PageStudentForm = "student-form"
	PageLogin       = "login"
	PageSignup      = "signup"
	PageProfile     = "profile"
	PageSettings    = "settings"
	PageMessage     = "message"
	PageLoading     = "loading"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"
	TemplatePathFromTest = "../../frontend/templates"
)

// Cookie names.
const (
	SessionCookieName           = "sid"
	PostLoginRedirectCookieName = "post_login_redirect"
	oauthStateCookieName        = "oauth_state"
	oauthNonceCookieName        = "oauth_nonce"
)

// studentListTarget is the roster region refreshed by HTMX.
const studentListTarget = "student-list"

// FormMode represents the mode of a form (create or edit).
type FormMode string

const (
	FormModeEdit   FormMode = "edit"
	FormModeCreate FormMode = "create"
)

var contentTemplates = map[string]string{ //nolint:gochecknoglobals // static read-only lookup
	PageHome:        "home-content",
	PageStudents:    "students-content",
	PageStudent:     "student-content",
	PageStudentForm: "student-form-content",
	PageLogin:       "login-content",
	PageSignup:      "signup-content",
	PageProfile:     "profile-content",
	PageSettings:    "settings-content",
	PageMessage:     "message-content",
	PageLoading:     "loading-content",
}

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to home-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return "home-content"
}
