package models

import validation "github.com/go-ozzo/ozzo-validation/v4"

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Profile is the single local user record.
type Profile struct {
	DisplayName          string `json:"displayName"`
	Avatar               string `json:"avatar"`
	Theme                Theme  `json:"theme"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// DefaultProfile is used until the user saves one.
func DefaultProfile() Profile {
	return Profile{Theme: ThemeLight, NotificationsEnabled: true}
}

// ProfilePatch is a partial profile update.
type ProfilePatch struct {
	DisplayName          *string `json:"displayName,omitempty"`
	Avatar               *string `json:"avatar,omitempty"`
	Theme                *Theme  `json:"theme,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
}

// Apply merges the set fields into p.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.DisplayName != nil {
		p.DisplayName = *pp.DisplayName
	}
	if pp.Avatar != nil {
		p.Avatar = *pp.Avatar
	}
	if pp.Theme != nil {
		p.Theme = *pp.Theme
	}
	if pp.NotificationsEnabled != nil {
		p.NotificationsEnabled = *pp.NotificationsEnabled
	}
	return p
}

// Validate rejects unknown themes and oversized text fields.
func (pp ProfilePatch) Validate() error {
	return validation.ValidateStruct(&pp,
		validation.Field(&pp.DisplayName, validation.Length(0, 100)),
		validation.Field(&pp.Theme, validation.NilOrNotEmpty, validation.In(ThemeLight, ThemeDark)),
	)
}
