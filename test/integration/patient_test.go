package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hms/hms/internal/domain/patient"
)

func TestPatientOTP(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepoPG(globalPool)

	t.Run("ReplayFailsAfterSuccess", func(t *testing.T) {
		p := createTestPatient(t, ctx)
		now := time.Now()
		if err := repo.SetOTP(ctx, p.ID, "123456", now.Add(patient.OTPTTL)); err != nil {
			t.Fatalf("SetOTP: %v", err)
		}

		cid := "PAT-" + uniqueSuffix()
		got, err := repo.ConsumeOTP(ctx, p.ID, "123456", cid, now)
		if err != nil {
			t.Fatalf("ConsumeOTP: %v", err)
		}
		if got != cid {
			t.Errorf("expected custom id %s, got %s", cid, got)
		}

		if _, err := repo.ConsumeOTP(ctx, p.ID, "123456", cid, now); !errors.Is(err, patient.ErrInvalidOTP) {
			t.Errorf("expected ErrInvalidOTP on replay, got %v", err)
		}

		fetched, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if fetched.OTP != nil || fetched.OTPExpiry != nil {
			t.Error("expected code cleared")
		}
		if fetched.LastLogin == nil {
			t.Error("expected last login recorded")
		}
	})

	t.Run("CustomIDKeptOnLaterLogins", func(t *testing.T) {
		p := createTestPatient(t, ctx)
		now := time.Now()
		first := "PAT-" + uniqueSuffix()
		for i, cid := range []string{first, "PAT-" + uniqueSuffix()} {
			if err := repo.SetOTP(ctx, p.ID, "654321", now.Add(patient.OTPTTL)); err != nil {
				t.Fatalf("SetOTP: %v", err)
			}
			got, err := repo.ConsumeOTP(ctx, p.ID, "654321", cid, now)
			if err != nil {
				t.Fatalf("login %d: %v", i, err)
			}
			if got != first {
				t.Errorf("login %d: expected %s, got %s", i, first, got)
			}
		}
	})

	t.Run("ExpiredCodeRejected", func(t *testing.T) {
		p := createTestPatient(t, ctx)
		now := time.Now()
		if err := repo.SetOTP(ctx, p.ID, "111111", now.Add(-time.Minute)); err != nil {
			t.Fatalf("SetOTP: %v", err)
		}
		if _, err := repo.ConsumeOTP(ctx, p.ID, "111111", "PAT-"+uniqueSuffix(), now); !errors.Is(err, patient.ErrInvalidOTP) {
			t.Errorf("expected ErrInvalidOTP, got %v", err)
		}
	})

	t.Run("WrongCodeRejected", func(t *testing.T) {
		p := createTestPatient(t, ctx)
		now := time.Now()
		if err := repo.SetOTP(ctx, p.ID, "222222", now.Add(patient.OTPTTL)); err != nil {
			t.Fatalf("SetOTP: %v", err)
		}
		if _, err := repo.ConsumeOTP(ctx, p.ID, "333333", "PAT-"+uniqueSuffix(), now); !errors.Is(err, patient.ErrInvalidOTP) {
			t.Errorf("expected ErrInvalidOTP, got %v", err)
		}
	})

	t.Run("DuplicateContact", func(t *testing.T) {
		p := createTestPatient(t, ctx)
		dup := &patient.Patient{Name: "Other", Email: "other_" + uniqueSuffix() + "@example.com", ContactNumber: p.ContactNumber}
		if err := repo.Create(ctx, dup); !errors.Is(err, patient.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})
}
