package models

import "time"

// User is a registered platform user. Users authenticate with a password;
// PasswordHash never leaves the service.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	IsActive     bool      `bson:"isActive" json:"isActive"`
	Profile      Profile   `bson:"profile" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Profile holds optional personal details, created empty on registration.
type Profile struct {
	FullName    string `bson:"fullName,omitempty" json:"fullName,omitempty"`
	PhoneNumber string `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Bio         string `bson:"bio,omitempty" json:"bio,omitempty"`
	Image       string `bson:"image,omitempty" json:"image,omitempty"`
}

// PublicProfile is the profile as exposed over the API, joined with the
// owning user's identity.
type PublicProfile struct {
	Profile
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicProfile builds the API view of the user's profile.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		Profile:   u.Profile,
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
