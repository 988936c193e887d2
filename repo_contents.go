package moderation

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Contents persists creator-owned content records.
type Contents interface {
	repository.Repository[*Content]
	WorkflowStore[*Content]

	Create(ctx context.Context, record *Content, criteria ...repository.InsertCriteria) (*Content, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Content, criteria ...repository.InsertCriteria) (*Content, error)
	UpdateStateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*Content]) (*Content, error)
	ListPendingApproval(ctx context.Context) ([]*Content, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Content, error)
	ListPublished(ctx context.Context) ([]*Content, error)
}

type contents struct {
	repository.Repository[*Content]
	db *bun.DB
}

var (
	_ Contents                = (*contents)(nil)
	_ WorkflowStore[*Content] = (*contents)(nil)
)

func NewContentsRepository(db *bun.DB) Contents {
	repo := repository.NewRepository[*Content](db, repository.ModelHandlers[*Content]{
		NewRecord: func() *Content { return &Content{} },
		GetID: func(c *Content) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Content, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &contents{
		Repository: repo,
		db:         db,
	}
}

func (c *contents) Create(ctx context.Context, record *Content, criteria ...repository.InsertCriteria) (*Content, error) {
	return c.CreateTx(ctx, c.db, record, criteria...)
}

func (c *contents) CreateTx(ctx context.Context, tx bun.IDB, record *Content, criteria ...repository.InsertCriteria) (*Content, error) {
	prepareContentDefaults(record)
	return c.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (c *contents) UpdateState(ctx context.Context, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*Content]) (*Content, error) {
	return c.UpdateStateTx(ctx, c.db, id, state, opts...)
}

func (c *contents) UpdateStateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*Content]) (*Content, error) {
	record := &Content{
		ID:    id,
		State: state,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	return c.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (c *contents) ListPendingApproval(ctx context.Context) ([]*Content, error) {
	return c.listByState(ctx, ContentPendingApproval)
}

func (c *contents) ListPublished(ctx context.Context) ([]*Content, error) {
	return c.listByState(ctx, ContentPublished)
}

func (c *contents) listByState(ctx context.Context, state WorkflowState) ([]*Content, error) {
	var records []*Content

	err := c.db.NewSelect().
		Model(&records).
		Where("?TableAlias.state = ?", state).
		Order("cnt.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (c *contents) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Content, error) {
	var records []*Content

	err := c.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("cnt.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// WithContentReviewer stamps the reviewing admin and review time on the record.
func WithContentReviewer(reviewer uuid.UUID, at time.Time, note string) StateUpdateOption[*Content] {
	return func(c *Content) {
		c.ReviewedBy = &reviewer
		c.ReviewedAt = &at
		if note != "" {
			c.ReviewNote = note
		}
	}
}

// WithPublishedAt stamps the publication time when content goes live.
func WithPublishedAt(at time.Time) StateUpdateOption[*Content] {
	return func(c *Content) {
		c.PublishedAt = &at
	}
}

func prepareContentDefaults(record *Content) {
	if record == nil {
		return
	}

	record.EnsureState()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
