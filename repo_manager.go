package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Items() Items
	Notes() Notes
	Tags() Tags
}

type mngr struct {
	db    *bun.DB
	users Users
	items Items
	notes Notes
	tags  Tags
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:    db,
		users: NewUsersRepository(db),
		items: NewItemsRepository(db),
		notes: NewNotesRepository(db),
		tags:  NewTagsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.items == nil {
		return errors.New("repository items should be initialized")
	}

	if m.notes == nil {
		return errors.New("repository notes should be initialized")
	}

	if m.tags == nil {
		return errors.New("repository tags should be initialized")
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

func (m mngr) Items() Items {
	return m.items
}

func (m mngr) Notes() Notes {
	return m.notes
}

func (m mngr) Tags() Tags {
	return m.tags
}
