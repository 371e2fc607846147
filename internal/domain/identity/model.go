package identity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/auth"
)

// User is a staff account. Accounts are deactivated, never deleted.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Nom          string    `json:"nom"`
	Prenom       string    `json:"prenom"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"date_creation"`
	UpdatedAt    time.Time `json:"date_modification"`
}

var validRoles = map[string]bool{
	auth.RoleAdmin:      true,
	auth.RoleTechnician: true,
	auth.RoleUser:       true,
}

// RegisterRequest is the payload of POST /auth/register and POST /users.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Role     string `json:"role"`
}

func (r *RegisterRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	if r.Role == "" {
		r.Role = auth.RoleUser
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *RegisterRequest) Validate() error {
	v := apperr.Violations{}
	v.Require("email", r.Email)
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			v.Add("email", "invalid format")
		}
	}
	if r.Password == "" {
		v.Add("password", "is required")
	}
	v.Require("nom", r.Nom)
	v.Require("prenom", r.Prenom)
	if !validRoles[r.Role] {
		v.Add("role", "must be one of admin, technicien, user")
	}
	return v.Err()
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Ref is the compact user summary embedded in other resources.
type Ref struct {
	ID     uuid.UUID `json:"id"`
	Nom    string    `json:"nom"`
	Prenom string    `json:"prenom"`
}

func (u *User) Ref() *Ref {
	return &Ref{ID: u.ID, Nom: u.Nom, Prenom: u.Prenom}
}
