package fake

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/flasky/internal/database/dbtest"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	store := repository.NewStore(dbtest.New(t).DB)
	require.NoError(t, store.InsertRoles(context.Background()))
	return store
}

func TestUsersAndPosts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	g := New(rand.New(rand.NewPCG(1, 2)))

	n, err := g.Users(ctx, store, 10, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	count, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	u, err := store.Users.Nth(ctx, 0)
	require.NoError(t, err)
	assert.True(t, u.Confirmed)
	assert.NoError(t, model.ValidateUsername(u.Username))
	following, err := store.Follows.IsFollowing(ctx, u, u)
	require.NoError(t, err)
	assert.True(t, following)

	n, err = g.Posts(ctx, store, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	posts, err := store.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, posts)
}

func TestUsersSkipDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// Same seed twice: every user of the second run collides with the first.
	_, err := New(rand.New(rand.NewPCG(7, 7))).Users(ctx, store, 3, bcrypt.MinCost)
	require.NoError(t, err)
	n, err := New(rand.New(rand.NewPCG(7, 7))).Users(ctx, store, 3, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestPostsNeedUsers(t *testing.T) {
	_, err := New(nil).Posts(context.Background(), newStore(t), 1)
	assert.Error(t, err)
}
