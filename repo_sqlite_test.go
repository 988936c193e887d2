package moderation_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	moderation "github.com/goliatone/go-moderation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	schema, err := moderation.GetMigrationsFS().ReadFile("data/sql/migrations/sqlite/20250901000000_init.up.sql")
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(schema), "--bun:split") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err = bunDB.Exec(stmt)
		require.NoError(t, err)
	}

	return bunDB
}

func seedUser(t *testing.T, db *bun.DB, email string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, ?)",
		id.String(), strings.Split(email, "@")[0], email, "x",
	)
	require.NoError(t, err)
	return id
}

func seedContent(t *testing.T, db *bun.DB, ownerID uuid.UUID, title string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO contents (id, owner_id, title, state) VALUES (?, ?, ?, 'published')",
		id.String(), ownerID.String(), title,
	)
	require.NoError(t, err)
	return id
}

func seedTag(t *testing.T, db *bun.DB, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec("INSERT INTO tags (id, name) VALUES (?, ?)", id.String(), name)
	require.NoError(t, err)
	return id
}

func TestPasswordPinsRepositoryReplaceAndConsume(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewPasswordPinsRepository(db)

	userID := seedUser(t, db, "pat@example.com")
	expires := time.Now().Add(moderation.PinTTL).UTC()

	first, err := repo.ReplaceTx(ctx, db, &moderation.PasswordPin{
		UserID:    &userID,
		Email:     "  Pat@Example.com ",
		Pin:       4821,
		ExpiresAt: expires,
	})
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", first.Email, "emails are stored normalized")
	assert.NotEqual(t, uuid.Nil, first.ID)

	second, err := repo.ReplaceTx(ctx, db, &moderation.PasswordPin{
		UserID:    &userID,
		Email:     "pat@example.com",
		Pin:       9134,
		ExpiresAt: expires,
	})
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*moderation.PasswordPin)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "replace retires the previous pin")

	_, err = repo.FindByEmailAndPin(ctx, "pat@example.com", 4821)
	assert.ErrorIs(t, err, moderation.ErrInvalidPin, "the retired pin is gone")

	found, err := repo.FindByEmailAndPin(ctx, "pat@example.com", 9134)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	claimed, err := repo.ConsumeTx(ctx, db, found.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ConsumeTx(ctx, db, found.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "a consumed pin cannot be claimed twice")
}

func TestBookmarksRepositoryIdempotentAdd(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewBookmarksRepository(db)

	pat := seedUser(t, db, "pat@example.com")
	sam := seedUser(t, db, "sam@example.com")
	content := seedContent(t, db, pat, "Intro to B-Trees")

	first, err := repo.Add(ctx, pat, content)
	require.NoError(t, err)

	again, err := repo.Add(ctx, pat, content)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "duplicate add converges on one row")

	listed, err := repo.List(ctx, pat)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, content, listed[0].ContentID)

	err = repo.Remove(ctx, sam, content)
	require.Error(t, err, "another user's pair looks missing")

	require.NoError(t, repo.Remove(ctx, pat, content))

	listed, err = repo.List(ctx, pat)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestReadLaterRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewReadLaterRepository(db)

	pat := seedUser(t, db, "pat@example.com")
	content := seedContent(t, db, pat, "Queueing Theory")

	item, err := repo.Add(ctx, pat, content)
	require.NoError(t, err)
	assert.Equal(t, pat, item.UserID)

	require.NoError(t, repo.Remove(ctx, pat, content))
	err = repo.Remove(ctx, pat, content)
	require.Error(t, err, "removing a missing pair reports not found")
}

func TestContentTagsRepositoryAttachDetach(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewContentTagsRepository(db)

	pat := seedUser(t, db, "pat@example.com")
	content := seedContent(t, db, pat, "Write-Ahead Logging")
	tag := seedTag(t, db, "databases")

	link, err := repo.Attach(ctx, content, tag)
	require.NoError(t, err)

	again, err := repo.Attach(ctx, content, tag)
	require.NoError(t, err)
	assert.Equal(t, link.ID, again.ID)

	links, err := repo.ListByContent(ctx, content)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, tag, links[0].TagID)

	_, err = repo.Attach(ctx, uuid.New(), tag)
	require.Error(t, err, "attaching to missing content is rejected")

	require.NoError(t, repo.Detach(ctx, content, tag))
	err = repo.Detach(ctx, content, tag)
	require.Error(t, err)
}

func TestNotificationsRepositoryMarkRead(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewNotificationsRepository(db)

	pat := seedUser(t, db, "pat@example.com")
	sam := seedUser(t, db, "sam@example.com")

	created, err := repo.Create(ctx, &moderation.Notification{
		UserID:  pat,
		Payload: map[string]any{"kind": "request_approved"},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	unread, err := repo.ListUnread(ctx, pat)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	err = repo.MarkRead(ctx, sam, created.ID)
	require.Error(t, err, "another user cannot mark the notification read")

	require.NoError(t, repo.MarkRead(ctx, pat, created.ID))

	unread, err = repo.ListUnread(ctx, pat)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestCategoriesRepositoryCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewCategoriesRepository(db)

	first, created, err := repo.CreateIfAbsent(ctx, &moderation.Category{Name: "Physics"})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotEqual(t, uuid.Nil, first.ID)

	second, created, err := repo.CreateIfAbsent(ctx, &moderation.Category{Name: "Physics"})
	require.NoError(t, err)
	assert.False(t, created, "a second approval converges on the existing row")
	assert.Equal(t, first.ID, second.ID)

	trimmed, created, err := repo.CreateIfAbsent(ctx, &moderation.Category{Name: "  Physics "})
	require.NoError(t, err)
	assert.False(t, created, "names are normalized before the insert")
	assert.Equal(t, first.ID, trimmed.ID)

	count, err := db.NewSelect().Model((*moderation.Category)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByName(ctx, "Physics")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestTagsRepositoryCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	db := setupSQLiteDB(t)
	repo := moderation.NewTagsRepository(db)

	first, created, err := repo.CreateIfAbsent(ctx, &moderation.Tag{Name: "quantum"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.CreateIfAbsent(ctx, &moderation.Tag{Name: "quantum"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := db.NewSelect().Model((*moderation.Tag)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
