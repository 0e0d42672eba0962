package warehouse

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tags is the domain surface for the shared tag vocabulary; it declares its
// own method set instead of embedding the generic repository.
type Tags interface {
	List(ctx context.Context) ([]*Tag, error)
	Get(ctx context.Context, id uuid.UUID) (*Tag, error)
	GetByName(ctx context.Context, name string) (*Tag, error)
	Create(ctx context.Context, record *Tag, criteria ...repository.InsertCriteria) (*Tag, error)
	GetOrCreateByNameTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (*Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AttachToItemTx(ctx context.Context, tx bun.IDB, itemID, tagID uuid.UUID) error
	DetachFromItem(ctx context.Context, itemID, tagID uuid.UUID) error
}

type tags struct {
	repository.Repository[*Tag]
	db *bun.DB
}

var _ Tags = (*tags)(nil)

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

	return &tags{
		Repository: repo,
		db:         db,
	}
}

func (r *tags) List(ctx context.Context) ([]*Tag, error) {
	var records []*Tag
	err := r.db.NewSelect().
		Model(&records).
		Order("tag.name ASC").
		Scan(ctx)
	return records, err
}

func (r *tags) Get(ctx context.Context, id uuid.UUID) (*Tag, error) {
	record := &Tag{}
	err := r.db.NewSelect().
		Model(record).
		Where("tag.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *tags) GetByName(ctx context.Context, name string) (*Tag, error) {
	record := &Tag{}
	err := r.db.NewSelect().
		Model(record).
		Where("tag.name = ?", normalizeTagName(name)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *tags) Create(ctx context.Context, record *Tag, criteria ...repository.InsertCriteria) (*Tag, error) {
	if record != nil {
		record.Name = normalizeTagName(record.Name)
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
	}

	exists, err := r.db.NewSelect().
		Model((*Tag)(nil)).
		Where("tag.name = ?", record.Name).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrTagAlreadyExists
	}

	return r.Repository.CreateTx(ctx, r.db, record, criteria...)
}

// GetOrCreateByNameTx resolves a tag by name, creating it when missing. Tags
// are shared across users so this is the only write path item tagging uses.
func (r *tags) GetOrCreateByNameTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error) {
	name = normalizeTagName(name)

	record := &Tag{}
	err := tx.NewSelect().
		Model(record).
		Where("tag.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return record, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record = &Tag{ID: uuid.New(), Name: name}
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *tags) UpdateName(ctx context.Context, id uuid.UUID, name string) (*Tag, error) {
	name = normalizeTagName(name)

	taken, err := r.db.NewSelect().
		Model((*Tag)(nil)).
		Where("tag.name = ?", name).
		Where("tag.id != ?", id).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTagAlreadyExists
	}

	res, err := r.db.NewUpdate().
		Model((*Tag)(nil)).
		Set("name = ?", name).
		Where("tag.id = ?", id).
		Where("tag.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrTagNotFound
	}

	return r.Get(ctx, id)
}

func (r *tags) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Tag)(nil)).
		Where("tag.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrTagNotFound
	}

	return nil
}

// AttachToItemTx links a tag to an item; linking twice is a no-op
func (r *tags) AttachToItemTx(ctx context.Context, tx bun.IDB, itemID, tagID uuid.UUID) error {
	_, err := tx.NewInsert().
		Model(&ItemTag{ItemID: itemID, TagID: tagID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (r *tags) DetachFromItem(ctx context.Context, itemID, tagID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*ItemTag)(nil)).
		Where("item_id = ?", itemID).
		Where("tag_id = ?", tagID).
		Exec(ctx)
	return err
}

func normalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
