package warehouse

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Items is the domain surface for warehouse items. It deliberately does not
// embed the generic repository interface: the domain methods below shadow
// several of its names with narrower signatures.
type Items interface {
	List(ctx context.Context) ([]*Item, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Item, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (*Item, error)
	Create(ctx context.Context, record *Item, criteria ...repository.InsertCriteria) (*Item, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Item, criteria ...repository.InsertCriteria) (*Item, error)
	UpdateFields(ctx context.Context, id uuid.UUID, update ItemUpdate) (*Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type items struct {
	repository.Repository[*Item]
	db *bun.DB
}

var _ Items = (*items)(nil)

func NewItemsRepository(db *bun.DB) Items {
	repo := repository.NewRepository[*Item](db, repository.ModelHandlers[*Item]{
		NewRecord: func() *Item { return &Item{} },
		GetID: func(i *Item) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Item, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &items{
		Repository: repo,
		db:         db,
	}
}

// List returns every item in the warehouse, newest first
func (r *items) List(ctx context.Context) ([]*Item, error) {
	var records []*Item
	err := r.db.NewSelect().
		Model(&records).
		Relation("Tags").
		Order("itm.created_at DESC").
		Scan(ctx)
	return records, err
}

// ListByUser returns the items registered by a single user, newest first
func (r *items) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Item, error) {
	var records []*Item
	err := r.db.NewSelect().
		Model(&records).
		Relation("Tags").
		Where("itm.user_id = ?", userID).
		Order("itm.created_at DESC").
		Scan(ctx)
	return records, err
}

// GetWithDetails loads a single item with its owner, notes, and tags
func (r *items) GetWithDetails(ctx context.Context, id uuid.UUID) (*Item, error) {
	record := &Item{}
	err := r.db.NewSelect().
		Model(record).
		Relation("User").
		Relation("Notes").
		Relation("Tags").
		Where("itm.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *items) Create(ctx context.Context, record *Item, criteria ...repository.InsertCriteria) (*Item, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *items) CreateTx(ctx context.Context, tx bun.IDB, record *Item, criteria ...repository.InsertCriteria) (*Item, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

// UpdateFields applies a partial update; nil pointers leave columns untouched
func (r *items) UpdateFields(ctx context.Context, id uuid.UUID, update ItemUpdate) (*Item, error) {
	if update.IsZero() {
		return r.GetWithDetails(ctx, id)
	}

	q := r.db.NewUpdate().
		Model((*Item)(nil)).
		Where("itm.id = ?", id).
		Where("itm.deleted_at IS NULL")

	if update.Title != nil {
		q = q.Set("title = ?", *update.Title)
	}
	if update.Owner != nil {
		q = q.Set("owner = ?", *update.Owner)
	}
	if update.ContactPhone != nil {
		q = q.Set("contact_phone = ?", *update.ContactPhone)
	}

	res, err := q.Set("updated_at = CURRENT_TIMESTAMP").Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrItemNotFound
	}

	return r.GetWithDetails(ctx, id)
}

// Delete soft deletes the item. Notes survive; the tag links do not matter
// once the item stops showing up in queries.
func (r *items) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Item)(nil)).
		Where("itm.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrItemNotFound
	}

	return nil
}
