package models

import "time"

// User is the durable identity record stored in MongoDB.
// PasswordHash is empty for accounts created through Google sign-in;
// such accounts can only authenticate via the federated flow.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	IsVerified   bool      `bson:"isVerified" json:"isVerified"`
	AvatarURL    string    `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Public returns the projection of the user that is safe to include in
// API responses (never carries the password hash because of the json tag,
// but copying keeps the contract explicit for callers holding pointers).
func (u *User) Public() *User {
	cp := *u
	cp.PasswordHash = ""
	return &cp
}
