package staff

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrDuplicate          = errors.New("account already exists")
	ErrApprovalPending    = errors.New("approval pending")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidRole        = errors.New("invalid role")

	ErrUsernameRequired       = errors.New("username is required")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrSpecializationRequired = errors.New("specialization is required for doctors")
	ErrAlreadyApproved        = errors.New("account already approved")
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Account is a staff member or administrator. Patients live in their own
// directory.
type Account struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           auth.Role `json:"role"`
	Specialization *string   `json:"specialization"`
	IsApproved     bool      `json:"isApproved"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Summary is the public view returned on login.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role"`
}

func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Username: a.Username, Email: a.Email, Role: a.Role}
}

type RegisterInput struct {
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	Role           auth.Role `json:"role"`
	Specialization string    `json:"specialization"`
}

type LoginResult struct {
	Token   string
	Account *Account
}
