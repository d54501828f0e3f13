package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/userhub/userhub/internal/model"
)

// Common errors for email repository operations.
var (
	ErrEmailNotFound = errors.New("email not found")
	ErrEmailExists   = errors.New("email already exists")
)

// AddressExclusion names rows ignored by EmailAddressTaken.
// Empty fields exclude nothing.
type AddressExclusion struct {
	UserID  string
	EmailID string
}

const emailColumns = `id, user_id, email, is_primary, verified_at, created_at, updated_at`

// CreateEmail inserts an email for its owning user.
func (r *Repository) CreateEmail(ctx context.Context, email *model.Email) error {
	query := `
		INSERT INTO user_emails (id, user_id, email, is_primary, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		email.ID,
		email.UserID,
		email.Address,
		email.IsPrimary,
		email.VerifiedAt,
		email.CreatedAt,
		email.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create email: %w", err)
	}

	return nil
}

// GetUserEmail retrieves an email only if it belongs to userID.
func (r *Repository) GetUserEmail(ctx context.Context, userID, emailID string) (*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM user_emails WHERE id = $1 AND user_id = $2`

	email, err := scanEmail(r.db.QueryRow(ctx, query, emailID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	return email, nil
}

// ListUserEmails returns a user's emails, primary first, then by id.
func (r *Repository) ListUserEmails(ctx context.Context, userID string) ([]model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM user_emails WHERE user_id = $1 ORDER BY is_primary DESC, id ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	return collectEmails(rows)
}

// ListEmailsForUsers loads the emails of several users in one query,
// grouped by user id and ordered as in ListUserEmails.
func (r *Repository) ListEmailsForUsers(ctx context.Context, userIDs []string) (map[string][]model.Email, error) {
	byUser := make(map[string][]model.Email, len(userIDs))
	if len(userIDs) == 0 {
		return byUser, nil
	}

	query := `SELECT ` + emailColumns + ` FROM user_emails WHERE user_id = ANY($1) ORDER BY user_id, is_primary DESC, id ASC`

	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails for users: %w", err)
	}
	defer rows.Close()

	emails, err := collectEmails(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range emails {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	return byUser, nil
}

// CountUserEmails returns how many emails the user owns.
func (r *Repository) CountUserEmails(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_emails WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return n, nil
}

// UpdateEmail writes the address and primary flag of an owned email.
func (r *Repository) UpdateEmail(ctx context.Context, email *model.Email) error {
	query := `
		UPDATE user_emails
		SET email = $3, is_primary = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Exec(ctx, query,
		email.ID,
		email.UserID,
		email.Address,
		email.IsPrimary,
		email.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to update email: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEmailNotFound
	}

	return nil
}

// DeleteUserEmail removes one owned email.
func (r *Repository) DeleteUserEmail(ctx context.Context, userID, emailID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_emails WHERE id = $1 AND user_id = $2`, emailID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete email: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEmailNotFound
	}

	return nil
}

// DeleteAllUserEmails removes every email the user owns.
func (r *Repository) DeleteAllUserEmails(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_emails WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user emails: %w", err)
	}
	return nil
}

// ClearPrimary unsets is_primary on all of the user's emails.
func (r *Repository) ClearPrimary(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE user_emails SET is_primary = FALSE, updated_at = $2 WHERE user_id = $1 AND is_primary`
	if _, err := r.db.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("failed to clear primary email: %w", err)
	}
	return nil
}

// MarkPrimary sets is_primary on one owned email without touching the others.
func (r *Repository) MarkPrimary(ctx context.Context, userID, emailID string, at time.Time) error {
	query := `UPDATE user_emails SET is_primary = TRUE, updated_at = $3 WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, emailID, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark primary email: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEmailNotFound
	}

	return nil
}

// EmailAddressTaken reports whether address is already stored on a row
// outside the exclusion.
func (r *Repository) EmailAddressTaken(ctx context.Context, address string, excl AddressExclusion) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM user_emails
			WHERE email = $1
			  AND ($2 = '' OR user_id <> $2)
			  AND ($3 = '' OR id <> $3)
		)
	`

	var taken bool
	if err := r.db.QueryRow(ctx, query, address, excl.UserID, excl.EmailID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check email address: %w", err)
	}

	return taken, nil
}

func collectEmails(rows pgx.Rows) ([]model.Email, error) {
	emails := []model.Email{}
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emails, nil
}

// scanEmail scans a single row into an Email model.
func scanEmail(row pgx.Row) (*model.Email, error) {
	var email model.Email
	err := row.Scan(
		&email.ID,
		&email.UserID,
		&email.Address,
		&email.IsPrimary,
		&email.VerifiedAt,
		&email.CreatedAt,
		&email.UpdatedAt,
	)
	return &email, err
}
