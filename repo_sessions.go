package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionRecord is the bun model backing persisted sessions.
type SessionRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:ses"`
	ID            string     `bun:"id,pk" json:"id,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	AdminID       *uuid.UUID `bun:"admin_id,nullzero,type:uuid" json:"admin_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BunSessionStore persists sessions in the database so they survive restarts
// and are shared across nodes.
type BunSessionStore struct {
	db  bun.IDB
	now func() time.Time
}

var _ SessionStore = (*BunSessionStore)(nil)

func NewBunSessionStore(db bun.IDB) *BunSessionStore {
	return &BunSessionStore{
		db:  db,
		now: time.Now,
	}
}

func (s *BunSessionStore) Get(ctx context.Context, id string) (*SessionState, error) {
	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	state := &SessionState{
		ID:        record.ID,
		UserID:    record.UserID,
		AdminID:   record.AdminID,
		CreatedAt: record.CreatedAt,
	}
	state.markSaved()
	return state, nil
}

func (s *BunSessionStore) Save(ctx context.Context, state *SessionState) error {
	updatedAt := s.now()
	record := &SessionRecord{
		ID:        state.ID,
		UserID:    state.UserID,
		AdminID:   state.AdminID,
		CreatedAt: state.CreatedAt,
		UpdatedAt: &updatedAt,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("admin_id = EXCLUDED.admin_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save session")
	}

	state.markSaved()
	return nil
}

func (s *BunSessionStore) Rotate(ctx context.Context, state *SessionState) (*SessionState, error) {
	if state != nil {
		if err := s.Delete(ctx, state.ID); err != nil {
			return nil, err
		}
	}

	next := NewSessionState()
	next.CreatedAt = s.now()

	record := &SessionRecord{
		ID:        next.ID,
		CreatedAt: next.CreatedAt,
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate session")
	}

	next.markSaved()
	return next, nil
}

func (s *BunSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	return nil
}
