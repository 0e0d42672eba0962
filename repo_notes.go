package warehouse

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Notes is the domain surface for item annotations; like Items it declares
// its own method set instead of embedding the generic repository.
type Notes interface {
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*Note, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Note, error)
	Create(ctx context.Context, record *Note, criteria ...repository.InsertCriteria) (*Note, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Note, criteria ...repository.InsertCriteria) (*Note, error)
	Get(ctx context.Context, id uuid.UUID) (*Note, error)
	UpdateText(ctx context.Context, id uuid.UUID, text string) (*Note, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type notes struct {
	repository.Repository[*Note]
	db *bun.DB
}

var _ Notes = (*notes)(nil)

func NewNotesRepository(db *bun.DB) Notes {
	repo := repository.NewRepository[*Note](db, repository.ModelHandlers[*Note]{
		NewRecord: func() *Note { return &Note{} },
		GetID: func(n *Note) uuid.UUID {
			if n == nil {
				return uuid.Nil
			}
			return n.ID
		},
		SetID: func(n *Note, id uuid.UUID) {
			if n != nil {
				n.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &notes{
		Repository: repo,
		db:         db,
	}
}

func (r *notes) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*Note, error) {
	var records []*Note
	err := r.db.NewSelect().
		Model(&records).
		Where("nte.item_id = ?", itemID).
		Order("nte.created_at DESC").
		Scan(ctx)
	return records, err
}

func (r *notes) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Note, error) {
	var records []*Note
	err := r.db.NewSelect().
		Model(&records).
		Where("nte.user_id = ?", userID).
		Order("nte.created_at DESC").
		Scan(ctx)
	return records, err
}

func (r *notes) Create(ctx context.Context, record *Note, criteria ...repository.InsertCriteria) (*Note, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *notes) CreateTx(ctx context.Context, tx bun.IDB, record *Note, criteria ...repository.InsertCriteria) (*Note, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *notes) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	record := &Note{}
	err := r.db.NewSelect().
		Model(record).
		Where("nte.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *notes) UpdateText(ctx context.Context, id uuid.UUID, text string) (*Note, error) {
	res, err := r.db.NewUpdate().
		Model((*Note)(nil)).
		Set("note_text = ?", text).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("nte.id = ?", id).
		Where("nte.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNoteNotFound
	}

	return r.Get(ctx, id)
}

func (r *notes) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Note)(nil)).
		Where("nte.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNoteNotFound
	}

	return nil
}
