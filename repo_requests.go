package moderation

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Requests persists category and tag proposals.
type Requests interface {
	repository.Repository[*ModerationRequest]
	WorkflowStore[*ModerationRequest]

	Create(ctx context.Context, record *ModerationRequest, criteria ...repository.InsertCriteria) (*ModerationRequest, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ModerationRequest, criteria ...repository.InsertCriteria) (*ModerationRequest, error)
	UpdateStateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*ModerationRequest]) (*ModerationRequest, error)
	ListPending(ctx context.Context, kind SubjectKind) ([]*ModerationRequest, error)
}

type requests struct {
	repository.Repository[*ModerationRequest]
	db *bun.DB
}

var (
	_ Requests                                  = (*requests)(nil)
	_ WorkflowStore[*ModerationRequest]         = (*requests)(nil)
	_ repository.Repository[*ModerationRequest] = (*requests)(nil)
)

func NewRequestsRepository(db *bun.DB) Requests {
	repo := repository.NewRepository[*ModerationRequest](db, repository.ModelHandlers[*ModerationRequest]{
		NewRecord: func() *ModerationRequest { return &ModerationRequest{} },
		GetID: func(r *ModerationRequest) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ModerationRequest, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &requests{
		Repository: repo,
		db:         db,
	}
}

func (r *requests) Create(ctx context.Context, record *ModerationRequest, criteria ...repository.InsertCriteria) (*ModerationRequest, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *requests) CreateTx(ctx context.Context, tx bun.IDB, record *ModerationRequest, criteria ...repository.InsertCriteria) (*ModerationRequest, error) {
	prepareRequestDefaults(record)
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *requests) UpdateState(ctx context.Context, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*ModerationRequest]) (*ModerationRequest, error) {
	return r.UpdateStateTx(ctx, r.db, id, state, opts...)
}

func (r *requests) UpdateStateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, state WorkflowState, opts ...StateUpdateOption[*ModerationRequest]) (*ModerationRequest, error) {
	record := &ModerationRequest{
		ID:    id,
		State: state,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	return r.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (r *requests) ListPending(ctx context.Context, kind SubjectKind) ([]*ModerationRequest, error) {
	var records []*ModerationRequest

	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.state = ?", RequestPending).
		Order("req.created_at ASC")

	if kind != "" {
		q = q.Where("?TableAlias.kind = ?", kind)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

// WithRequestReviewer stamps the reviewing admin and review time on the record.
func WithRequestReviewer(reviewer uuid.UUID, at time.Time, note string) StateUpdateOption[*ModerationRequest] {
	return func(r *ModerationRequest) {
		r.ReviewedBy = &reviewer
		r.ReviewedAt = &at
		if note != "" {
			r.ReviewNote = note
		}
	}
}

func prepareRequestDefaults(record *ModerationRequest) {
	if record == nil {
		return
	}

	record.EnsureState()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
