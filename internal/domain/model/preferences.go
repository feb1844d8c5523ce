//revive:disable-next-line:var-naming // legacy package name used across the project
package model

// PreferenceName identifies a single per-user toggle.
type PreferenceName string

const (
	PrefEmailNotifications PreferenceName = "emailNotifications"
	PrefStudentUpdates     PreferenceName = "studentUpdates"
	PrefMarketingEmails    PreferenceName = "marketingEmails"
	PrefCompactView        PreferenceName = "compactView"
)

// PreferenceNames lists every known preference in display order.
func PreferenceNames() []PreferenceName {
	return []PreferenceName{PrefEmailNotifications, PrefStudentUpdates, PrefMarketingEmails, PrefCompactView}
}

// ParsePreferenceName reports whether s names a known preference.
func ParsePreferenceName(s string) (PreferenceName, bool) {
	for _, n := range PreferenceNames() {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Preferences are the per-user settings toggles.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	StudentUpdates     bool `json:"studentUpdates"`
	MarketingEmails    bool `json:"marketingEmails"`
	CompactView        bool `json:"compactView"`
}

// DefaultPreferences returns the values used when nothing is stored.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		StudentUpdates:     true,
		MarketingEmails:    false,
		CompactView:        false,
	}
}

// Get returns the value of the named preference.
func (p Preferences) Get(name PreferenceName) bool {
	switch name {
	case PrefEmailNotifications:
		return p.EmailNotifications
	case PrefStudentUpdates:
		return p.StudentUpdates
	case PrefMarketingEmails:
		return p.MarketingEmails
	case PrefCompactView:
		return p.CompactView
	default:
		return false
	}
}

// With returns a copy with the named preference set to v. Unknown names are ignored.
func (p Preferences) With(name PreferenceName, v bool) Preferences {
	switch name {
	case PrefEmailNotifications:
		p.EmailNotifications = v
	case PrefStudentUpdates:
		p.StudentUpdates = v
	case PrefMarketingEmails:
		p.MarketingEmails = v
	case PrefCompactView:
		p.CompactView = v
	}
	return p
}

// WantsStudentUpdates reports whether the user should be mailed about roster changes.
func (p Preferences) WantsStudentUpdates() bool {
	return p.EmailNotifications && p.StudentUpdates
}

// ApplyStored overlays stored values onto the defaults. Absent keys keep their default.
func ApplyStored(stored map[PreferenceName]bool) Preferences {
	p := DefaultPreferences()
	for name, v := range stored {
		p = p.With(name, v)
	}
	return p
}
