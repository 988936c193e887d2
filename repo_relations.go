package moderation

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Bookmark links a user to content they saved.
type Bookmark struct {
	bun.BaseModel `bun:"table:bookmarks,alias:bmk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ContentID     uuid.UUID  `bun:"content_id,notnull,type:uuid" json:"content_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ReadLaterItem links a user to content queued for later reading.
type ReadLaterItem struct {
	bun.BaseModel `bun:"table:read_later,alias:rdl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ContentID     uuid.UUID  `bun:"content_id,notnull,type:uuid" json:"content_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ContentTag links content to a canonical tag.
type ContentTag struct {
	bun.BaseModel `bun:"table:content_tags,alias:ctg"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ContentID     uuid.UUID  `bun:"content_id,notnull,type:uuid" json:"content_id,omitempty"`
	TagID         uuid.UUID  `bun:"tag_id,notnull,type:uuid" json:"tag_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserContentLinks is an idempotent (user, content) link store. Add never
// duplicates a pair and returns the surviving row either way; Remove is
// scoped to the owning user so one user cannot detach another's links.
type UserContentLinks[T any] interface {
	Add(ctx context.Context, userID, contentID uuid.UUID) (T, error)
	Remove(ctx context.Context, userID, contentID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]T, error)
}

// Bookmarks stores saved-content links.
type Bookmarks = UserContentLinks[*Bookmark]

// ReadLater stores read-later links.
type ReadLater = UserContentLinks[*ReadLaterItem]

// ContentTags attaches canonical tags to content.
type ContentTags interface {
	Attach(ctx context.Context, contentID, tagID uuid.UUID) (*ContentTag, error)
	Detach(ctx context.Context, contentID, tagID uuid.UUID) error
	ListByContent(ctx context.Context, contentID uuid.UUID) ([]*ContentTag, error)
}

// BookmarksRepository implements Bookmarks using Bun.
type BookmarksRepository struct {
	db *bun.DB
}

// NewBookmarksRepository creates a new repository.
func NewBookmarksRepository(db *bun.DB) *BookmarksRepository {
	return &BookmarksRepository{db: db}
}

var _ Bookmarks = (*BookmarksRepository)(nil)

// Add inserts the pair unless it already exists. The insert is conditional
// in SQL so a concurrent duplicate add converges on one row, and that row is
// what gets returned.
func (r *BookmarksRepository) Add(ctx context.Context, userID, contentID uuid.UUID) (*Bookmark, error) {
	record := &Bookmark{
		ID:        uuid.New(),
		UserID:    userID,
		ContentID: contentID,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id, content_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	existing := &Bookmark{}
	err = r.db.NewSelect().
		Model(existing).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// Remove deletes the caller's own link. A pair belonging to another user is
// indistinguishable from a missing pair.
func (r *BookmarksRepository) Remove(ctx context.Context, userID, contentID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Bookmark)(nil)).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Exec(ctx)
	if err != nil {
		return err
	}

	return ensureDeleted(res, "bookmark not found", map[string]any{
		"user_id":    userID.String(),
		"content_id": contentID.String(),
	})
}

// List returns the user's bookmarks, newest first.
func (r *BookmarksRepository) List(ctx context.Context, userID uuid.UUID) ([]*Bookmark, error) {
	var records []*Bookmark
	err := r.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("bmk.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadLaterRepository implements ReadLater using Bun.
type ReadLaterRepository struct {
	db *bun.DB
}

// NewReadLaterRepository creates a new repository.
func NewReadLaterRepository(db *bun.DB) *ReadLaterRepository {
	return &ReadLaterRepository{db: db}
}

var _ ReadLater = (*ReadLaterRepository)(nil)

// Add inserts the pair unless it already exists, returning the surviving row.
func (r *ReadLaterRepository) Add(ctx context.Context, userID, contentID uuid.UUID) (*ReadLaterItem, error) {
	record := &ReadLaterItem{
		ID:        uuid.New(),
		UserID:    userID,
		ContentID: contentID,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id, content_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	existing := &ReadLaterItem{}
	err = r.db.NewSelect().
		Model(existing).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// Remove deletes the caller's own link.
func (r *ReadLaterRepository) Remove(ctx context.Context, userID, contentID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*ReadLaterItem)(nil)).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Exec(ctx)
	if err != nil {
		return err
	}

	return ensureDeleted(res, "read later item not found", map[string]any{
		"user_id":    userID.String(),
		"content_id": contentID.String(),
	})
}

// List returns the user's read-later queue, newest first.
func (r *ReadLaterRepository) List(ctx context.Context, userID uuid.UUID) ([]*ReadLaterItem, error) {
	var records []*ReadLaterItem
	err := r.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("rdl.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ContentTagsRepository implements ContentTags using Bun.
type ContentTagsRepository struct {
	db *bun.DB
}

// NewContentTagsRepository creates a new repository.
func NewContentTagsRepository(db *bun.DB) *ContentTagsRepository {
	return &ContentTagsRepository{db: db}
}

var _ ContentTags = (*ContentTagsRepository)(nil)

// Attach links the tag to the content unless the pair already exists.
func (r *ContentTagsRepository) Attach(ctx context.Context, contentID, tagID uuid.UUID) (*ContentTag, error) {
	if err := r.ensureContentExists(ctx, contentID); err != nil {
		return nil, err
	}

	record := &ContentTag{
		ID:        uuid.New(),
		ContentID: contentID,
		TagID:     tagID,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (content_id, tag_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	existing := &ContentTag{}
	err = r.db.NewSelect().
		Model(existing).
		Where("content_id = ? AND tag_id = ?", contentID, tagID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// Detach removes the association. A missing content row and a missing
// association are both not-found, but the message names what was missing.
func (r *ContentTagsRepository) Detach(ctx context.Context, contentID, tagID uuid.UUID) error {
	if err := r.ensureContentExists(ctx, contentID); err != nil {
		return err
	}

	res, err := r.db.NewDelete().
		Model((*ContentTag)(nil)).
		Where("content_id = ? AND tag_id = ?", contentID, tagID).
		Exec(ctx)
	if err != nil {
		return err
	}

	return ensureDeleted(res, "tag is not attached to this content", map[string]any{
		"content_id": contentID.String(),
		"tag_id":     tagID.String(),
	})
}

// ListByContent returns the tag links for a piece of content.
func (r *ContentTagsRepository) ListByContent(ctx context.Context, contentID uuid.UUID) ([]*ContentTag, error) {
	var records []*ContentTag
	err := r.db.NewSelect().
		Model(&records).
		Where("content_id = ?", contentID).
		Order("ctg.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ContentTagsRepository) ensureContentExists(ctx context.Context, contentID uuid.UUID) error {
	exists, err := r.db.NewSelect().
		Model((*Content)(nil)).
		Where("?TableAlias.id = ?", contentID).
		Exists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		return goerrors.New("content not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"content_id": contentID.String()})
	}

	return nil
}

func ensureDeleted(res interface{ RowsAffected() (int64, error) }, msg string, metadata map[string]any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return goerrors.New(msg, goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(metadata)
	}

	return nil
}
