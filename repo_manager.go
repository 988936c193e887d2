package moderation

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	repository "github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Requests() Requests
	Categories() Categories
	Tags() Tags
	Contents() Contents
	Bookmarks() Bookmarks
	ReadLater() ReadLater
	ContentTags() ContentTags
	PasswordPins() PasswordPins
	Notifications() Notifications
}

type mngr struct {
	db            *bun.DB
	users         Users
	requests      Requests
	categories    Categories
	tags          Tags
	contents      Contents
	bookmarks     Bookmarks
	readLater     ReadLater
	contentTags   ContentTags
	passwordPins  PasswordPins
	notifications Notifications
}

// NewRepositoryManager wires every repository onto one database handle.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		requests:      NewRequestsRepository(db),
		categories:    NewCategoriesRepository(db),
		tags:          NewTagsRepository(db),
		contents:      NewContentsRepository(db),
		bookmarks:     NewBookmarksRepository(db),
		readLater:     NewReadLaterRepository(db),
		contentTags:   NewContentTagsRepository(db),
		passwordPins:  NewPasswordPinsRepository(db),
		notifications: NewNotificationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.requests == nil {
		return errors.New("repository requests should be initialized")
	}

	if m.categories == nil {
		return errors.New("repository categories should be initialized")
	}

	if m.tags == nil {
		return errors.New("repository tags should be initialized")
	}

	if m.contents == nil {
		return errors.New("repository contents should be initialized")
	}

	if m.bookmarks == nil {
		return errors.New("repository bookmarks should be initialized")
	}

	if m.readLater == nil {
		return errors.New("repository readLater should be initialized")
	}

	if m.contentTags == nil {
		return errors.New("repository contentTags should be initialized")
	}

	if m.passwordPins == nil {
		return errors.New("repository passwordPins should be initialized")
	}

	if m.notifications == nil {
		return errors.New("repository notifications should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Requests() Requests {
	return m.requests
}

func (m mngr) Categories() Categories {
	return m.categories
}

func (m mngr) Tags() Tags {
	return m.tags
}

func (m mngr) Contents() Contents {
	return m.contents
}

func (m mngr) Bookmarks() Bookmarks {
	return m.bookmarks
}

func (m mngr) ReadLater() ReadLater {
	return m.readLater
}

func (m mngr) ContentTags() ContentTags {
	return m.contentTags
}

func (m mngr) PasswordPins() PasswordPins {
	return m.passwordPins
}

func (m mngr) Notifications() Notifications {
	return m.notifications
}
