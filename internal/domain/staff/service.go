package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/notification"
)

// Notifier sends templated messages. Satisfied by *notification.Dispatcher.
type Notifier interface {
	Send(ctx context.Context, templateID string, data map[string]string, recipient string) error
}

type TokenIssuer interface {
	IssueStaff(accountID uuid.UUID, role auth.Role) (string, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	notify Notifier
	logger zerolog.Logger
}

func NewService(repo Repository, tokens TokenIssuer, notify Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, notify: notify, logger: logger}
}

func (s *Service) register(ctx context.Context, in RegisterInput, approved bool) (*Account, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	if in.Username == "" {
		return nil, ErrUsernameRequired
	}
	if !strings.Contains(in.Email, "@") {
		return nil, ErrInvalidEmail
	}

	var spec *string
	if in.Role == auth.RoleDoctor {
		sp := strings.TrimSpace(in.Specialization)
		if sp == "" {
			return nil, ErrSpecializationRequired
		}
		spec = &sp
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           in.Role,
		Specialization: spec,
		IsApproved:     approved,
		Status:         StatusPending,
	}
	if approved {
		a.Status = StatusApproved
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", string(a.Role)).Msg("account registered")
	return a, nil
}

// RegisterDoctor creates an unapproved doctor account.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterInput) (*Account, error) {
	in.Role = auth.RoleDoctor
	return s.register(ctx, in, false)
}

// RegisterStaff creates an unapproved receptionist or lab technician.
func (s *Service) RegisterStaff(ctx context.Context, in RegisterInput) (*Account, error) {
	if in.Role != auth.RoleReceptionist && in.Role != auth.RoleLabTechnician {
		return nil, ErrInvalidRole
	}
	return s.register(ctx, in, false)
}

// CreateAdmin bootstraps an approved administrator.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*Account, error) {
	return s.register(ctx, RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     auth.RoleAdmin,
	}, true)
}

// Login authenticates any account by email.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, email, password, "")
}

func (s *Service) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, email, password, auth.RoleAdmin)
}

func (s *Service) DoctorLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, email, password, auth.RoleDoctor)
}

func (s *Service) login(ctx context.Context, email, password string, role auth.Role) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if role != "" && a.Role != role {
		return nil, ErrNotFound
	}
	if a.Role.RequiresApproval() && !a.IsApproved {
		return nil, ErrApprovalPending
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueStaff(a.ID, a.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, Account: a}, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*Account, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) ListUsers(ctx context.Context) ([]*Account, error) {
	return s.repo.ListNonAdmin(ctx)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Account, error) {
	return s.repo.ListByRole(ctx, auth.RoleDoctor)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetDoctor returns ErrNotFound when id names an account of another role.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Role != auth.RoleDoctor {
		return nil, ErrNotFound
	}
	return a, nil
}

// Approve unlocks the account. The password hash is left untouched.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetApproval(ctx, id, true, StatusApproved); err != nil {
		return nil, err
	}
	a.IsApproved = true
	a.Status = StatusApproved
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", string(a.Role)).Msg("account approved")
	s.mail(ctx, notification.TemplateStaffApproved, a)
	return a, nil
}

// Reject removes a pending account together with its appointments and
// inbox. Approved accounts are refused with ErrAlreadyApproved.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsApproved {
		return nil, ErrAlreadyApproved
	}
	if err := s.repo.DeletePending(ctx, id); err != nil {
		return nil, err
	}
	a.IsApproved = false
	a.Status = StatusRejected
	s.logger.Info().Str("account_id", a.ID.String()).Str("role", string(a.Role)).Msg("account rejected")
	s.mail(ctx, notification.TemplateStaffRejected, a)
	return a, nil
}

// mail is best effort; delivery errors are logged by the dispatcher.
func (s *Service) mail(ctx context.Context, templateID string, a *Account) {
	if s.notify == nil {
		return
	}
	err := s.notify.Send(ctx, templateID, map[string]string{
		"role":     string(a.Role),
		"username": a.Username,
	}, a.Email)
	if err != nil && !errors.Is(err, notification.ErrNoSender) {
		s.logger.Debug().Err(err).Str("account_id", a.ID.String()).Msg("status email not sent")
	}
}
