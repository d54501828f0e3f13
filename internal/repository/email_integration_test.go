//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/userhub/userhub/internal/testutil"
)

// ============================================================================
// Email Repository Integration Tests
// ============================================================================

func TestIntegrationEmailRepository_GlobalUniqueness(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	owner := testutil.NewTestUser(t)
	other := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := repo.CreateUser(ctx, other); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	address := testutil.UniqueAddress("unique")
	if err := repo.CreateEmail(ctx, testutil.NewTestEmail(t, owner.ID, address, true)); err != nil {
		t.Fatalf("CreateEmail failed: %v", err)
	}

	err := repo.CreateEmail(ctx, testutil.NewTestEmail(t, other.ID, address, true))
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestIntegrationEmailRepository_AddressTaken(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	owner := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	email := testutil.NewTestEmail(t, owner.ID, testutil.UniqueAddress("taken"), true)
	if err := repo.CreateEmail(ctx, email); err != nil {
		t.Fatalf("CreateEmail failed: %v", err)
	}

	tests := []struct {
		name string
		excl AddressExclusion
		want bool
	}{
		{"no exclusion", AddressExclusion{}, true},
		{"owner excluded", AddressExclusion{UserID: owner.ID}, false},
		{"row excluded", AddressExclusion{EmailID: email.ID}, false},
		{"other owner excluded", AddressExclusion{UserID: "someone-else"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken, err := repo.EmailAddressTaken(ctx, email.Address, tt.excl)
			if err != nil {
				t.Fatalf("EmailAddressTaken failed: %v", err)
			}
			if taken != tt.want {
				t.Errorf("taken = %v, want %v", taken, tt.want)
			}
		})
	}
}

func TestIntegrationEmailRepository_PrimaryOrderingAndSwitch(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	owner := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	first := testutil.NewTestEmail(t, owner.ID, testutil.UniqueAddress("first"), false)
	second := testutil.NewTestEmail(t, owner.ID, testutil.UniqueAddress("second"), true)
	if err := repo.CreateEmail(ctx, first); err != nil {
		t.Fatalf("CreateEmail failed: %v", err)
	}
	if err := repo.CreateEmail(ctx, second); err != nil {
		t.Fatalf("CreateEmail failed: %v", err)
	}

	emails, err := repo.ListUserEmails(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListUserEmails failed: %v", err)
	}
	if len(emails) != 2 || emails[0].ID != second.ID {
		t.Fatalf("expected primary first, got %+v", emails)
	}

	err = repo.WithTx(ctx, func(tx *Repository) error {
		now := time.Now().UTC()
		if err := tx.LockUser(ctx, owner.ID); err != nil {
			return err
		}
		if err := tx.ClearPrimary(ctx, owner.ID, now); err != nil {
			return err
		}
		return tx.MarkPrimary(ctx, owner.ID, first.ID, now)
	})
	if err != nil {
		t.Fatalf("switch primary failed: %v", err)
	}

	emails, err = repo.ListUserEmails(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListUserEmails failed: %v", err)
	}
	primaries := 0
	for _, e := range emails {
		if e.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 || emails[0].ID != first.ID {
		t.Errorf("expected exactly %s primary, got %+v", first.ID, emails)
	}
}

func TestIntegrationEmailRepository_OwnershipScoped(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	owner := testutil.NewTestUser(t)
	stranger := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := repo.CreateUser(ctx, stranger); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	email := testutil.NewTestEmail(t, owner.ID, testutil.UniqueAddress("owned"), true)
	if err := repo.CreateEmail(ctx, email); err != nil {
		t.Fatalf("CreateEmail failed: %v", err)
	}

	if _, err := repo.GetUserEmail(ctx, stranger.ID, email.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("expected ErrEmailNotFound for stranger, got %v", err)
	}
	if err := repo.DeleteUserEmail(ctx, stranger.ID, email.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("expected ErrEmailNotFound deleting as stranger, got %v", err)
	}

	byUser, err := repo.ListEmailsForUsers(ctx, []string{owner.ID, stranger.ID})
	if err != nil {
		t.Fatalf("ListEmailsForUsers failed: %v", err)
	}
	if len(byUser[owner.ID]) != 1 || len(byUser[stranger.ID]) != 0 {
		t.Errorf("unexpected grouping: %+v", byUser)
	}
}
