// Package viewmodel holds the data shapes shared by every rendered page.
package viewmodel

// User represents the signed-in user exposed to templates.
type User struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
	Initials    string
}

// Label is the name shown in the navigation bar.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// Layout captures shared chrome metadata (titles, navigation state, auth flags).
type Layout struct {
	Title           string
	PageTitle       string
	CurrentPage     string
	CSRFToken       string
	IsAuthenticated bool
	CompactView     bool
	User            *User
}
