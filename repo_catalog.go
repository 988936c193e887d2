package moderation

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Categories persists the canonical category list.
type Categories interface {
	repository.Repository[*Category]
	CreateIfAbsent(ctx context.Context, record *Category) (*Category, bool, error)
	CreateIfAbsentTx(ctx context.Context, tx bun.IDB, record *Category) (*Category, bool, error)
	GetByName(ctx context.Context, name string) (*Category, error)
}

// Tags persists the canonical tag list.
type Tags interface {
	repository.Repository[*Tag]
	CreateIfAbsent(ctx context.Context, record *Tag) (*Tag, bool, error)
	CreateIfAbsentTx(ctx context.Context, tx bun.IDB, record *Tag) (*Tag, bool, error)
	GetByName(ctx context.Context, name string) (*Tag, error)
}

type categories struct {
	repository.Repository[*Category]
	db *bun.DB
}

type tags struct {
	repository.Repository[*Tag]
	db *bun.DB
}

var (
	_ Categories = (*categories)(nil)
	_ Tags       = (*tags)(nil)
)

func NewCategoriesRepository(db *bun.DB) Categories {
	repo := repository.NewRepository[*Category](db, repository.ModelHandlers[*Category]{
		NewRecord: func() *Category { return &Category{} },
		GetID: func(c *Category) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Category, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &categories{Repository: repo, db: db}
}

func NewTagsRepository(db *bun.DB) Tags {
	repo := repository.NewRepository[*Tag](db, repository.ModelHandlers[*Tag]{
		NewRecord: func() *Tag { return &Tag{} },
		GetID: func(t *Tag) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tag, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &tags{Repository: repo, db: db}
}

// CreateIfAbsent inserts the category unless one with the same name exists.
// The insert is conditional in SQL, never a read-then-write, so concurrent
// approvals of the same name converge on a single canonical row. The boolean
// reports whether this call created the row.
func (c *categories) CreateIfAbsent(ctx context.Context, record *Category) (*Category, bool, error) {
	return c.CreateIfAbsentTx(ctx, c.db, record)
}

func (c *categories) CreateIfAbsentTx(ctx context.Context, tx bun.IDB, record *Category) (*Category, bool, error) {
	record.Name = normalizeName(record.Name)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	if inserted > 0 {
		return record, true, nil
	}

	existing := &Category{}
	err = tx.NewSelect().
		Model(existing).
		Where("?TableAlias.name = ?", record.Name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

func (c *categories) GetByName(ctx context.Context, name string) (*Category, error) {
	record := &Category{}
	err := c.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", normalizeName(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}
	return record, nil
}

// CreateIfAbsent mirrors the category behavior for tags.
func (t *tags) CreateIfAbsent(ctx context.Context, record *Tag) (*Tag, bool, error) {
	return t.CreateIfAbsentTx(ctx, t.db, record)
}

func (t *tags) CreateIfAbsentTx(ctx context.Context, tx bun.IDB, record *Tag) (*Tag, bool, error) {
	record.Name = normalizeName(record.Name)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	if inserted > 0 {
		return record, true, nil
	}

	existing := &Tag{}
	err = tx.NewSelect().
		Model(existing).
		Where("?TableAlias.name = ?", record.Name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

func (t *tags) GetByName(ctx context.Context, name string) (*Tag, error) {
	record := &Tag{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", normalizeName(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}
	return record, nil
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
