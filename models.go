package warehouse

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	EmailVerified bool       `bun:"is_email_verified" json:"is_email_verified"`
	Items         []*Item    `bun:"rel:has-many,join:id=user_id" json:"items,omitempty"`
	Notes         []*Note    `bun:"rel:has-many,join:id=user_id" json:"notes,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// TokenUser is the identity summary embedded in auth token claims. It is the
// only part of the user record that travels inside a token.
func (u *User) TokenUser() TokenUser {
	return TokenUser{
		Email: u.Email,
		UID:   u.ID.String(),
		Role:  string(u.Role),
	}
}

// Item is a stored warehouse item
type Item struct {
	bun.BaseModel `bun:"table:items,alias:itm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	Owner         string     `bun:"owner,notnull" json:"owner,omitempty"`
	StoredUntil   time.Time  `bun:"stored_until,notnull" json:"stored_until,omitempty"`
	ContactPhone  string     `bun:"contact_phone" json:"contact_phone,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Notes         []*Note    `bun:"rel:has-many,join:id=item_id" json:"notes,omitempty"`
	Tags          []*Tag     `bun:"m2m:item_tags,join:Item=Tag" json:"tags,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Note is a free form annotation a user attaches to an item
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:nte"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Text          string     `bun:"note_text,notnull" json:"note_text,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	ItemID        uuid.UUID  `bun:"item_id,type:uuid" json:"item_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Item          *Item      `bun:"rel:belongs-to,join:item_id=id" json:"item,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Tag labels items; tags are shared across users and deduplicated by name
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Items         []*Item    `bun:"m2m:item_tags,join:Tag=Item" json:"items,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ItemTag is the items<->tags join table
type ItemTag struct {
	bun.BaseModel `bun:"table:item_tags,alias:itg"`
	ItemID        uuid.UUID `bun:"item_id,pk,type:uuid" json:"item_id"`
	Item          *Item     `bun:"rel:belongs-to,join:item_id=id" json:"-"`
	TagID         uuid.UUID `bun:"tag_id,pk,type:uuid" json:"tag_id"`
	Tag           *Tag      `bun:"rel:belongs-to,join:tag_id=id" json:"-"`
}

// ItemUpdate enumerates the item fields a PATCH may change. Pointer fields
// distinguish "leave untouched" from "set to zero value".
type ItemUpdate struct {
	Title        *string `json:"title,omitempty"`
	Owner        *string `json:"owner,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

// IsZero reports whether the update would touch nothing.
func (u ItemUpdate) IsZero() bool {
	return u.Title == nil && u.Owner == nil && u.ContactPhone == nil
}
