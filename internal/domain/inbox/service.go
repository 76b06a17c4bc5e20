package inbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Append(ctx context.Context, owner Owner, message string, kind Kind, appointmentID *uuid.UUID) (*Entry, error) {
	if owner.ID == uuid.Nil {
		return nil, fmt.Errorf("owner is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if kind == "" {
		kind = KindGeneral
	}
	e := &Entry{Owner: owner, Message: message, Kind: kind, AppointmentID: appointmentID}
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append notification: %w", err)
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, owner Owner) ([]*Entry, error) {
	return s.repo.List(ctx, owner)
}

// MarkRead flags one entry as read and returns the owner's updated list.
// Entries of other owners are never matched.
func (s *Service) MarkRead(ctx context.Context, owner Owner, id uuid.UUID) ([]*Entry, error) {
	if err := s.repo.MarkRead(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner)
}

// PurgeRead drops all read entries. Unread entries keep their order.
func (s *Service) PurgeRead(ctx context.Context, owner Owner) ([]*Entry, error) {
	if _, err := s.repo.PurgeRead(ctx, owner); err != nil {
		return nil, fmt.Errorf("purge notifications: %w", err)
	}
	return s.repo.List(ctx, owner)
}
