package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-session-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScopeContextRoundTrip(t *testing.T) {
	scope := auth.NewScope(nil, "")
	ctx := auth.WithScopeContext(context.Background(), scope)

	got, ok := auth.ScopeFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, scope, got)
}

func TestScopeFromContextMissing(t *testing.T) {
	_, ok := auth.ScopeFromContext(context.Background())
	assert.False(t, ok)
}

func TestScopeFromRouterContext(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		scope := auth.NewScope(nil, "")
		mockCtx := new(MockContext)
		mockCtx.On("Locals", auth.ScopeLocalsKey).Return(scope)

		assert.Same(t, scope, auth.ScopeFrom(mockCtx))
		mockCtx.AssertExpectations(t)
	})

	t.Run("missing", func(t *testing.T) {
		mockCtx := new(MockContext)
		mockCtx.On("Locals", auth.ScopeLocalsKey).Return(nil)

		assert.Nil(t, auth.ScopeFrom(mockCtx))
		mockCtx.AssertExpectations(t)
	})
}

func TestCurrentPrincipalsFromContext(t *testing.T) {
	t.Run("empty scope", func(t *testing.T) {
		ctx := auth.WithScopeContext(context.Background(), auth.NewScope(nil, ""))

		_, ok := auth.CurrentUserFromContext(ctx)
		assert.False(t, ok)
		_, ok = auth.CurrentAdminFromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("resolved user", func(t *testing.T) {
		repo := NewMockRepoManager()
		auther := newAuther(repo, nil)

		user := &auth.User{ID: uuid.New()}
		repo.users.On("TrackLogin", mock.Anything, user).Return(nil).Once()

		scope := auth.NewScope(nil, "")
		require.NoError(t, auther.Login(context.Background(), scope, auth.UserIdentity(user), auth.KindUser))

		ctx := auth.WithScopeContext(context.Background(), scope)
		got, ok := auth.CurrentUserFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, user, got)
	})
}
