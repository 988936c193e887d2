package moderation_test

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"testing"
	"time"

	moderation "github.com/goliatone/go-moderation"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fakePinUsers struct {
	moderation.Users
	byEmail map[string]*moderation.User
}

func (f *fakePinUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*moderation.User, error) {
	if user, ok := f.byEmail[identifier]; ok {
		return user, nil
	}
	return nil, repository.NewRecordNotFound()
}

type fakePasswordPins struct {
	rows map[string]*moderation.PasswordPin
}

func (f *fakePasswordPins) ReplaceTx(ctx context.Context, tx bun.IDB, record *moderation.PasswordPin) (*moderation.PasswordPin, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	f.rows[record.Email] = record
	return record, nil
}

func (f *fakePasswordPins) FindByEmailAndPin(ctx context.Context, email string, pin int) (*moderation.PasswordPin, error) {
	record, ok := f.rows[strings.ToLower(strings.TrimSpace(email))]
	if !ok || record.Pin != pin {
		return nil, moderation.ErrInvalidPin
	}
	return record, nil
}

func (f *fakePasswordPins) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	for email, record := range f.rows {
		if record.ID == id {
			delete(f.rows, email)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePasswordPins) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.ConsumeTx(ctx, nil, id)
}

type pinRepoManager struct {
	stubRepoManager
	users *fakePinUsers
	pins  *fakePasswordPins
}

func (f *pinRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

func (f *pinRepoManager) Users() moderation.Users               { return f.users }
func (f *pinRepoManager) PasswordPins() moderation.PasswordPins { return f.pins }

func newPinRepoManager(users ...*moderation.User) *pinRepoManager {
	byEmail := map[string]*moderation.User{}
	for _, u := range users {
		byEmail[u.Email] = u
	}
	return &pinRepoManager{
		users: &fakePinUsers{byEmail: byEmail},
		pins:  &fakePasswordPins{rows: map[string]*moderation.PasswordPin{}},
	}
}

type captureMailer struct {
	messages []moderation.MailMessage
	err      error
}

func (m *captureMailer) Send(ctx context.Context, msg moderation.MailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func pinTestUser(email string) *moderation.User {
	return &moderation.User{
		ID:       uuid.New(),
		Username: "pat",
		Email:    email,
		Role:     moderation.RoleConsumer,
		Status:   moderation.UserStatusActive,
	}
}

func fixedPin(code int) func() (int, error) {
	return func() (int, error) { return code, nil }
}

func TestGeneratePin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should issue a pin and mail it to a known account", func(t *testing.T) {
		user := pinTestUser("pat@example.com")
		repo := newPinRepoManager(user)
		mailer := &captureMailer{}
		sink := &capturingSink{}

		handler := moderation.NewGeneratePinHandler(repo, mailer).
			WithClock(func() time.Time { return now }).
			WithPinSource(fixedPin(4242)).
			WithActivitySink(sink)

		var resp *moderation.GeneratePinResponse
		err := handler.Execute(ctx, moderation.GeneratePinMessage{
			Email:      "pat@example.com",
			OnResponse: func(r *moderation.GeneratePinResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)

		stored, ok := repo.pins.rows["pat@example.com"]
		require.True(t, ok)
		assert.Equal(t, 4242, stored.Pin)
		assert.Equal(t, now.Add(moderation.PinTTL), stored.ExpiresAt)
		require.NotNil(t, stored.UserID)
		assert.Equal(t, user.ID, *stored.UserID)

		require.Len(t, mailer.messages, 1)
		assert.Equal(t, "pat@example.com", mailer.messages[0].To)
		assert.Contains(t, mailer.messages[0].Body, strconv.Itoa(4242))

		require.Len(t, sink.events, 1)
		assert.Equal(t, moderation.ActivityEventPinIssued, sink.events[0].EventType)
		assert.Equal(t, user.ID.String(), sink.events[0].UserID)
	})

	t.Run("should retire the previous pin when a new one is issued", func(t *testing.T) {
		user := pinTestUser("pat@example.com")
		repo := newPinRepoManager(user)
		mailer := &captureMailer{}

		handler := moderation.NewGeneratePinHandler(repo, mailer).
			WithClock(func() time.Time { return now })

		require.NoError(t, handler.WithPinSource(fixedPin(1111)).Execute(ctx, moderation.GeneratePinMessage{Email: "pat@example.com"}))
		require.NoError(t, handler.WithPinSource(fixedPin(2222)).Execute(ctx, moderation.GeneratePinMessage{Email: "pat@example.com"}))

		require.Len(t, repo.pins.rows, 1, "one live pin per email")
		assert.Equal(t, 2222, repo.pins.rows["pat@example.com"].Pin)
	})

	t.Run("should succeed silently for an unknown email", func(t *testing.T) {
		repo := newPinRepoManager()
		mailer := &captureMailer{}

		handler := moderation.NewGeneratePinHandler(repo, mailer).
			WithPinSource(fixedPin(4242))

		var resp *moderation.GeneratePinResponse
		err := handler.Execute(ctx, moderation.GeneratePinMessage{
			Email:      "nobody@example.com",
			OnResponse: func(r *moderation.GeneratePinResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success, "unknown emails are indistinguishable from known ones")

		assert.Empty(t, repo.pins.rows)
		assert.Empty(t, mailer.messages)
	})

	t.Run("should reject an invalid email", func(t *testing.T) {
		handler := moderation.NewGeneratePinHandler(newPinRepoManager(), &captureMailer{})

		err := handler.Execute(ctx, moderation.GeneratePinMessage{Email: "not-an-email"})
		require.Error(t, err)
	})

	t.Run("should not fail the operation when mail delivery fails", func(t *testing.T) {
		user := pinTestUser("pat@example.com")
		repo := newPinRepoManager(user)
		mailer := &captureMailer{err: assert.AnError}

		handler := moderation.NewGeneratePinHandler(repo, mailer).
			WithPinSource(fixedPin(4242))

		err := handler.Execute(ctx, moderation.GeneratePinMessage{Email: "pat@example.com"})
		require.NoError(t, err)
		assert.Len(t, repo.pins.rows, 1, "the pin is stored even when the email bounces")
	})

	t.Run("should stop on a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		handler := moderation.NewGeneratePinHandler(newPinRepoManager(), &captureMailer{})
		err := handler.Execute(cancelled, moderation.GeneratePinMessage{Email: "pat@example.com"})
		require.Error(t, err)
	})
}

func TestVerifyPin(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	issuePin := func(repo *pinRepoManager, email string, code int) *moderation.PasswordPin {
		user := repo.users.byEmail[email]
		pin := &moderation.PasswordPin{
			ID:        uuid.New(),
			UserID:    &user.ID,
			Email:     email,
			Pin:       code,
			ExpiresAt: issued.Add(moderation.PinTTL),
		}
		repo.pins.rows[email] = pin
		return pin
	}

	t.Run("should verify and consume a live pin", func(t *testing.T) {
		repo := newPinRepoManager(pinTestUser("pat@example.com"))
		issuePin(repo, "pat@example.com", 4821)
		sink := &capturingSink{}

		handler := moderation.NewVerifyPinHandler(repo).
			WithClock(func() time.Time { return issued.Add(time.Minute) }).
			WithActivitySink(sink)

		var resp *moderation.VerifyPinResponse
		err := handler.Execute(ctx, moderation.VerifyPinMessage{
			Email:      "pat@example.com",
			Pin:        4821,
			OnResponse: func(r *moderation.VerifyPinResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)

		assert.Empty(t, repo.pins.rows, "a verified pin is gone")

		require.Len(t, sink.events, 1)
		assert.Equal(t, moderation.ActivityEventPinVerified, sink.events[0].EventType)
	})

	t.Run("should refuse a second use of the same pin", func(t *testing.T) {
		repo := newPinRepoManager(pinTestUser("pat@example.com"))
		issuePin(repo, "pat@example.com", 4821)

		handler := moderation.NewVerifyPinHandler(repo).
			WithClock(func() time.Time { return issued.Add(time.Minute) })

		msg := moderation.VerifyPinMessage{Email: "pat@example.com", Pin: 4821}
		require.NoError(t, handler.Execute(ctx, msg))

		err := handler.Execute(ctx, msg)
		assert.ErrorIs(t, err, moderation.ErrInvalidPin)
	})

	t.Run("should refuse a wrong pin", func(t *testing.T) {
		repo := newPinRepoManager(pinTestUser("pat@example.com"))
		issuePin(repo, "pat@example.com", 4821)

		handler := moderation.NewVerifyPinHandler(repo).
			WithClock(func() time.Time { return issued.Add(time.Minute) })

		err := handler.Execute(ctx, moderation.VerifyPinMessage{Email: "pat@example.com", Pin: 9999})
		assert.ErrorIs(t, err, moderation.ErrInvalidPin)
		assert.Len(t, repo.pins.rows, 1, "a failed attempt must not consume the pin")
	})

	t.Run("should refuse a pin for the wrong email", func(t *testing.T) {
		repo := newPinRepoManager(pinTestUser("pat@example.com"))
		issuePin(repo, "pat@example.com", 4821)

		handler := moderation.NewVerifyPinHandler(repo).
			WithClock(func() time.Time { return issued.Add(time.Minute) })

		err := handler.Execute(ctx, moderation.VerifyPinMessage{Email: "other@example.com", Pin: 4821})
		assert.ErrorIs(t, err, moderation.ErrInvalidPin)
	})

	t.Run("should refuse an expired pin with the same error", func(t *testing.T) {
		repo := newPinRepoManager(pinTestUser("pat@example.com"))
		issuePin(repo, "pat@example.com", 4821)

		handler := moderation.NewVerifyPinHandler(repo).
			WithClock(func() time.Time { return issued.Add(moderation.PinTTL + time.Second) })

		err := handler.Execute(ctx, moderation.VerifyPinMessage{Email: "pat@example.com", Pin: 4821})
		assert.ErrorIs(t, err, moderation.ErrInvalidPin)
	})

	t.Run("should refuse an invalid email with the same error", func(t *testing.T) {
		handler := moderation.NewVerifyPinHandler(newPinRepoManager())

		err := handler.Execute(ctx, moderation.VerifyPinMessage{Email: "not-an-email", Pin: 4821})
		assert.ErrorIs(t, err, moderation.ErrInvalidPin)
	})
}
