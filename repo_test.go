package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/goliatone/go-session-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSchema = `
CREATE TABLE instances (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);

CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    instance_id TEXT NOT NULL,
    user_role TEXT NOT NULL DEFAULT 'member',
    first_name TEXT,
    last_name TEXT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    phone_number TEXT,
    password_hash TEXT,
    remember_token TEXT DEFAULT '',
    remember_token_expires_at TIMESTAMP NULL,
    last_login_at TIMESTAMP NULL,
    last_logout_at TIMESTAMP NULL,
    login_attempts INTEGER DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);

CREATE TABLE admins (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    last_login_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);

CREATE TABLE "groups" (
    id TEXT NOT NULL PRIMARY KEY,
    instance_id TEXT NOT NULL,
    group_type TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);

CREATE TABLE users_groups (
    user_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, group_id)
);

CREATE TABLE auth_sessions (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NULL,
    admin_id TEXT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);
`

func setupRepoManager(t *testing.T) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return auth.NewRepositoryManager(db), db
}

func seedUser(t *testing.T, db *bun.DB, user *auth.User) *auth.User {
	t.Helper()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.InstanceID == uuid.Nil {
		user.InstanceID = uuid.New()
	}
	if user.Role == "" {
		user.Role = auth.RoleMember
	}
	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByID", func(t *testing.T) {
		repo, db := setupRepoManager(t)
		user := seedUser(t, db, &auth.User{Username: "kim", Email: "kim@example.com"})

		got, err := repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "kim", got.Username)

		_, err = repo.Users().GetByID(ctx, uuid.New())
		assert.True(t, auth.IsIdentityNotFound(err))
	})

	t.Run("GetByLogin matches email then username", func(t *testing.T) {
		repo, db := setupRepoManager(t)
		seedUser(t, db, &auth.User{Username: "kim", Email: "kim@example.com"})

		byEmail, err := repo.Users().GetByLogin(ctx, "kim@example.com")
		require.NoError(t, err)
		assert.Equal(t, "kim", byEmail.Username)

		byUsername, err := repo.Users().GetByLogin(ctx, "kim")
		require.NoError(t, err)
		assert.Equal(t, "kim@example.com", byUsername.Email)

		_, err = repo.Users().GetByLogin(ctx, "nobody")
		assert.True(t, auth.IsIdentityNotFound(err))

		_, err = repo.Users().GetByLogin(ctx, "   ")
		assert.True(t, auth.IsIdentityNotFound(err))
	})

	t.Run("remember token lifecycle", func(t *testing.T) {
		repo, db := setupRepoManager(t)
		user := seedUser(t, db, &auth.User{Username: "kim", Email: "kim@example.com"})

		// issue
		require.NoError(t, repo.Users().Remember(ctx, user, 14*24*time.Hour))
		require.NotEmpty(t, user.RememberToken)
		require.NotNil(t, user.RememberTokenExpiresAt)
		firstExpiry := *user.RememberTokenExpiresAt

		stored, err := repo.Users().GetByRememberToken(ctx, user.RememberToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)

		// refresh rotates the value, keeps the expiry
		oldToken := user.RememberToken
		require.NoError(t, repo.Users().RefreshToken(ctx, user))
		assert.NotEqual(t, oldToken, user.RememberToken)

		reloaded, err := repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RememberToken, reloaded.RememberToken)
		require.NotNil(t, reloaded.RememberTokenExpiresAt)
		assert.WithinDuration(t, firstExpiry, *reloaded.RememberTokenExpiresAt, time.Second)

		_, err = repo.Users().GetByRememberToken(ctx, oldToken)
		assert.True(t, auth.IsIdentityNotFound(err), "old token no longer matches")

		// forget clears both columns
		require.NoError(t, repo.Users().Forget(ctx, user))
		assert.Empty(t, user.RememberToken)
		assert.Nil(t, user.RememberTokenExpiresAt)

		reloaded, err = repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.RememberToken)
		assert.Nil(t, reloaded.RememberTokenExpiresAt)
	})

	t.Run("empty remember token never matches", func(t *testing.T) {
		repo, db := setupRepoManager(t)
		seedUser(t, db, &auth.User{Username: "kim", Email: "kim@example.com"})

		_, err := repo.Users().GetByRememberToken(ctx, "")
		assert.True(t, auth.IsIdentityNotFound(err))
	})

	t.Run("login tracking", func(t *testing.T) {
		repo, db := setupRepoManager(t)
		user := seedUser(t, db, &auth.User{Username: "kim", Email: "kim@example.com"})

		require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))
		require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))
		assert.Equal(t, 2, user.LoginAttempts)
		assert.NotNil(t, user.LoginAttemptAt)

		require.NoError(t, repo.Users().TrackLogin(ctx, user))
		assert.Equal(t, 0, user.LoginAttempts)
		assert.Nil(t, user.LoginAttemptAt)
		assert.NotNil(t, user.LastLoginAt)

		reloaded, err := repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.LoginAttempts)
		assert.NotNil(t, reloaded.LastLoginAt)

		require.NoError(t, repo.Users().TrackLogout(ctx, user))
		assert.NotNil(t, user.LastLogoutAt)
	})
}

func TestAdminsRepository(t *testing.T) {
	ctx := context.Background()

	repo, db := setupRepoManager(t)

	admin := &auth.Admin{
		ID:       uuid.New(),
		Username: "ops",
		Email:    "ops@example.com",
	}
	_, err := db.NewInsert().Model(admin).Exec(ctx)
	require.NoError(t, err)

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.Admins().GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, "ops", got.Username)

		_, err = repo.Admins().GetByID(ctx, uuid.New())
		assert.True(t, auth.IsIdentityNotFound(err))
	})

	t.Run("GetByLogin", func(t *testing.T) {
		got, err := repo.Admins().GetByLogin(ctx, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)

		got, err = repo.Admins().GetByLogin(ctx, "ops")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)
	})

	t.Run("TrackLogin", func(t *testing.T) {
		require.NoError(t, repo.Admins().TrackLogin(ctx, admin))
		assert.NotNil(t, admin.LastLoginAt)

		reloaded, err := repo.Admins().GetByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.NotNil(t, reloaded.LastLoginAt)
	})
}

func TestGroupsRepository(t *testing.T) {
	ctx := context.Background()

	repo, db := setupRepoManager(t)

	instanceID := uuid.New()
	group := &auth.Group{
		ID:         uuid.New(),
		InstanceID: instanceID,
		GroupType:  "interest",
		Name:       "gardening",
	}
	_, err := db.NewInsert().Model(group).Exec(ctx)
	require.NoError(t, err)

	user := seedUser(t, db, &auth.User{
		Username:   "kim",
		Email:      "kim@example.com",
		InstanceID: instanceID,
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.Groups().GetByID(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "gardening", got.Name)

		_, err = repo.Groups().GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrGroupNotFound)
	})

	t.Run("membership lifecycle", func(t *testing.T) {
		isMember, err := repo.Groups().IsMember(ctx, group.ID, user.ID)
		require.NoError(t, err)
		assert.False(t, isMember)

		require.NoError(t, repo.Groups().AddMember(ctx, group.ID, user.ID))
		// joining twice is a no-op
		require.NoError(t, repo.Groups().AddMember(ctx, group.ID, user.ID))

		isMember, err = repo.Groups().IsMember(ctx, group.ID, user.ID)
		require.NoError(t, err)
		assert.True(t, isMember)

		require.NoError(t, repo.Groups().RemoveMember(ctx, group.ID, user.ID))

		isMember, err = repo.Groups().IsMember(ctx, group.ID, user.ID)
		require.NoError(t, err)
		assert.False(t, isMember)
	})
}

func TestBunSessionStore(t *testing.T) {
	ctx := context.Background()

	_, db := setupRepoManager(t)
	store := auth.NewBunSessionStore(db)

	t.Run("unknown id misses", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})

	t.Run("save, load, update", func(t *testing.T) {
		state := auth.NewSessionState()
		userID := uuid.New()
		state.SetSlot(auth.KindUser, &userID)

		require.NoError(t, store.Save(ctx, state))
		assert.True(t, state.Persisted())

		loaded, err := store.Get(ctx, state.ID)
		require.NoError(t, err)
		got := loaded.Slot(auth.KindUser)
		require.NotNil(t, got)
		assert.Equal(t, userID, *got)

		// upsert path
		adminID := uuid.New()
		loaded.SetSlot(auth.KindAdmin, &adminID)
		require.NoError(t, store.Save(ctx, loaded))

		reloaded, err := store.Get(ctx, state.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.Slot(auth.KindAdmin))
		assert.Equal(t, adminID, *reloaded.Slot(auth.KindAdmin))
	})

	t.Run("rotate", func(t *testing.T) {
		state := auth.NewSessionState()
		require.NoError(t, store.Save(ctx, state))

		next, err := store.Rotate(ctx, state)
		require.NoError(t, err)
		assert.NotEqual(t, state.ID, next.ID)
		assert.True(t, next.Fresh())
		assert.True(t, next.Persisted())

		_, err = store.Get(ctx, state.ID)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)

		loaded, err := store.Get(ctx, next.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded.Slot(auth.KindUser))
	})

	t.Run("delete", func(t *testing.T) {
		state := auth.NewSessionState()
		require.NoError(t, store.Save(ctx, state))
		require.NoError(t, store.Delete(ctx, state.ID))

		_, err := store.Get(ctx, state.ID)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})
}
