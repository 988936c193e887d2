package moderation

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordPins stores one live verification pin per email. Replace runs a
// delete-then-insert inside the caller's transaction so issuing a fresh pin
// atomically retires any previous one.
type PasswordPins interface {
	ReplaceTx(ctx context.Context, tx bun.IDB, record *PasswordPin) (*PasswordPin, error)
	FindByEmailAndPin(ctx context.Context, email string, pin int) (*PasswordPin, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
}

// PasswordPinsRepository implements PasswordPins using Bun.
type PasswordPinsRepository struct {
	db *bun.DB
}

// NewPasswordPinsRepository creates a new repository.
func NewPasswordPinsRepository(db *bun.DB) *PasswordPinsRepository {
	return &PasswordPinsRepository{db: db}
}

var _ PasswordPins = (*PasswordPinsRepository)(nil)

// ReplaceTx deletes any pin for the email and inserts the new one.
func (r *PasswordPinsRepository) ReplaceTx(ctx context.Context, tx bun.IDB, record *PasswordPin) (*PasswordPin, error) {
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := tx.NewDelete().
		Model((*PasswordPin)(nil)).
		Where("email = ?", record.Email).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	_, err = tx.NewInsert().
		Model(record).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// FindByEmailAndPin returns the matching pin row. Wrong email, wrong pin, or
// no pin at all look the same to the caller: ErrInvalidPin. Expiry is checked
// by the caller against its own clock.
func (r *PasswordPinsRepository) FindByEmailAndPin(ctx context.Context, email string, pin int) (*PasswordPin, error) {
	record := &PasswordPin{}
	err := r.db.NewSelect().
		Model(record).
		Where("email = ? AND pin = ?", strings.ToLower(strings.TrimSpace(email)), pin).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidPin
		}
		return nil, err
	}

	return record, nil
}

// ConsumeTx deletes the pin inside the caller's transaction. The boolean
// reports whether this call actually removed the row, so two concurrent
// verifications of the same pin cannot both claim it.
func (r *PasswordPinsRepository) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*PasswordPin)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Consume deletes the pin outside any transaction.
func (r *PasswordPinsRepository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.ConsumeTx(ctx, r.db, id)
}
