package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is stamped on every token this service signs.
	Issuer = "hospital-management-system"

	StaffTokenTTL   = time.Hour
	PatientTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated principal. Subject holds the account or
// patient id.
type Claims struct {
	jwt.RegisteredClaims
	Role     Role   `json:"role"`
	CustomID string `json:"customId,omitempty"`
}

// SubjectID parses the subject as a UUID.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IsPatient reports whether the token was issued through OTP login.
func (c *Claims) IsPatient() bool {
	return c.Role == RolePatient
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// IssueStaff signs a one hour token for an account.
func (i *TokenIssuer) IssueStaff(accountID uuid.UUID, role Role) (string, error) {
	return i.sign(&Claims{
		RegisteredClaims: i.registered(accountID, StaffTokenTTL),
		Role:             role,
	})
}

// IssuePatient signs a seven day token for a patient.
func (i *TokenIssuer) IssuePatient(patientID uuid.UUID, customID string) (string, error) {
	return i.sign(&Claims{
		RegisteredClaims: i.registered(patientID, PatientTokenTTL),
		Role:             RolePatient,
		CustomID:         customID,
	})
}

func (i *TokenIssuer) registered(sub uuid.UUID, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   sub.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *TokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse validates signature, expiry and issuer.
func (i *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
