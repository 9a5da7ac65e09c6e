package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/flasky/internal/database/dbtest"
	"github.com/iliyamo/flasky/internal/model"
)

const adminEmail = "admin@example.com"

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(dbtest.New(t).DB)
	require.NoError(t, s.InsertRoles(context.Background()))
	return s
}

func createUser(t *testing.T, s *Store, email, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Confirmed: true}
	u.SetEmail(email)
	require.NoError(t, u.SetPassword("cat", bcrypt.MinCost))
	require.NoError(t, s.CreateUser(context.Background(), u, adminEmail))
	return u
}

func createPost(t *testing.T, s *Store, author *model.User, body string, at time.Time) *model.Post {
	t.Helper()
	p, err := model.NewPost(author.ID, body, at)
	require.NoError(t, err)
	require.NoError(t, s.Posts.Create(context.Background(), p))
	return p
}

func TestInsertRolesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertRoles(ctx))

	roles, err := s.Roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, model.RoleUser, roles[0].Name)
	assert.Equal(t, model.PermFollow|model.PermComment|model.PermWrite, roles[0].Permissions)
	assert.Equal(t, model.RoleModerator, roles[1].Name)
	assert.Equal(t, model.RoleAdministrator, roles[2].Name)
	assert.True(t, roles[2].HasPermission(model.PermAdmin))

	def, err := s.Roles.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, def.Name)
}

func TestInsertRolesRepairsDrift(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mod, err := s.Roles.GetByName(ctx, model.RoleModerator)
	require.NoError(t, err)
	mod.Default = true
	mod.AddPermission(model.PermAdmin)
	require.NoError(t, s.Roles.Save(ctx, mod))
	_, err = s.Roles.Default(ctx)
	assert.ErrorIs(t, err, ErrAmbiguousDefaultRole)

	extra := &model.Role{Name: "Legacy", Default: true}
	require.NoError(t, s.Roles.Save(ctx, extra))

	require.NoError(t, s.InsertRoles(ctx))
	def, err := s.Roles.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, def.Name)
	mod, err = s.Roles.GetByName(ctx, model.RoleModerator)
	require.NoError(t, err)
	assert.False(t, mod.HasPermission(model.PermAdmin))
}

func TestDefaultRoleMissing(t *testing.T) {
	s := NewStore(dbtest.New(t).DB)
	_, err := s.Roles.Default(context.Background())
	assert.ErrorIs(t, err, ErrNoDefaultRole)

	u := &model.User{Username: "john"}
	u.SetEmail("john@example.com")
	assert.ErrorIs(t, s.CreateUser(context.Background(), u, ""), ErrNoDefaultRole)
}

func TestCreateUserAssignsRoleAndSelfFollow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	john := createUser(t, s, "john@example.com", "john")
	assert.NotZero(t, john.ID)
	assert.Equal(t, model.RoleUser, john.Role.Name)

	admin := createUser(t, s, "Admin@Example.com", "boss")
	assert.Equal(t, model.RoleAdministrator, admin.Role.Name)
	assert.True(t, admin.IsAdministrator())

	got, err := s.Users.GetByEmail(ctx, "JOHN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "john", got.Username)
	require.NotNil(t, got.Role)
	assert.True(t, got.Can(model.PermWrite))
	assert.True(t, got.VerifyPassword("cat"))
	assert.Equal(t, "d4c74594d841139328695756648b6bd6", got.AvatarHash)

	self, err := s.Follows.IsFollowing(ctx, got, got)
	require.NoError(t, err)
	assert.True(t, self)
	n, err := s.Follows.CountFollowers(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	edges, err := s.Follows.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, edges)
}

func TestCreateUserDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	createUser(t, s, "john@example.com", "john")

	dup := &model.User{Username: "other"}
	dup.SetEmail("john@example.com")
	require.NoError(t, dup.SetPassword("x", bcrypt.MinCost))
	err := s.CreateUser(ctx, dup, adminEmail)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Zero(t, dup.ID)

	n, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	edges, err := s.Follows.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, edges)

	taken, err := s.Users.UsernameTaken(ctx, "john")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = s.Users.EmailTaken(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserUpdateAndPing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "john@example.com", "john")

	u.Name = "John Doe"
	u.Location = "Nowhere"
	u.AboutMe = "hi"
	require.NoError(t, s.Users.Update(ctx, u))
	require.NoError(t, s.Users.Ping(ctx, u.ID, base))

	got, err := s.Users.GetByUsername(ctx, "john")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, "Nowhere", got.Location)
	assert.True(t, got.LastSeen.Equal(base))

	_, err = s.Users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFollowGraph(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	b := createUser(t, s, "b@example.com", "b")

	ok, err := s.Follows.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Follows.Follow(ctx, a.ID, b.ID, base))
	require.NoError(t, s.Follows.Follow(ctx, a.ID, b.ID, base))
	ok, err = s.Follows.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Follows.IsFollowedBy(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Follows.IsFollowedBy(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Follows.CountFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Follows.CountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	followers, err := s.Follows.Followers(ctx, b.ID, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, "a", followers.Items[0].User.Username)
	assert.Equal(t, 1, followers.Total)

	following, err := s.Follows.Following(ctx, a.ID, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, following.Items, 1)
	assert.Equal(t, "b", following.Items[0].User.Username)

	require.NoError(t, s.Follows.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, s.Follows.Unfollow(ctx, a.ID, b.ID))
	ok, err = s.Follows.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Follows.Unfollow(ctx, a.ID, a.ID), ErrSelfUnfollow)
	ok, err = s.Follows.IsFollowing(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFollowUnsavedUser(t *testing.T) {
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	_, err := s.Follows.IsFollowing(context.Background(), a, &model.User{Username: "ghost"})
	assert.ErrorIs(t, err, ErrUnsaved)
	assert.ErrorIs(t, s.Follows.Follow(context.Background(), a.ID, 0, base), ErrUnsaved)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	b := createUser(t, s, "b@example.com", "b")
	c := createUser(t, s, "c@example.com", "c")
	require.NoError(t, s.Follows.Follow(ctx, a.ID, b.ID, base))

	createPost(t, s, a, "by a", base.Add(1*time.Minute))
	createPost(t, s, b, "by b", base.Add(2*time.Minute))
	createPost(t, s, c, "by c", base.Add(3*time.Minute))

	tl, err := s.Posts.Timeline(ctx, a.ID, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, tl.Items, 2)
	assert.Equal(t, 2, tl.Total)
	assert.Equal(t, "by b", tl.Items[0].Body())
	assert.Equal(t, "by a", tl.Items[1].Body())
	assert.Equal(t, "b", tl.Items[0].Author.Username)

	tl, err = s.Posts.Timeline(ctx, c.ID, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, tl.Items, 1)
	assert.Equal(t, "by c", tl.Items[0].Body())
}

func TestPostPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	for i := 0; i < 5; i++ {
		createPost(t, s, a, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	p1, err := s.Posts.List(ctx, PageRequest{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, p1.Items, 2)
	assert.Equal(t, "post 4", p1.Items[0].Body())
	assert.False(t, p1.HasPrev())
	assert.True(t, p1.HasNext())
	assert.Equal(t, 3, p1.Pages())

	p3, err := s.Posts.List(ctx, PageRequest{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, p3.Items, 1)
	assert.True(t, p3.HasPrev())
	assert.False(t, p3.HasNext())

	p4, err := s.Posts.List(ctx, PageRequest{Page: 4, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, p4.Items)
	assert.False(t, p4.HasNext())
	assert.Equal(t, 5, p4.Total)

	all, err := s.Posts.List(ctx, PageRequest{Page: 0, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Page)
	assert.Len(t, all.Items, 5)
	assert.Equal(t, 5, all.Total)

	mine, err := s.Posts.ListByAuthor(ctx, a.ID, PageRequest{Page: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, mine.Total)
	n, err := s.Users.PostCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPostUpdateBody(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	p := createPost(t, s, a, "*first*", base)

	require.NoError(t, p.SetBody("**second**"))
	require.NoError(t, s.Posts.UpdateBody(ctx, p))

	got, err := s.Posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "**second**", got.Body())
	assert.Equal(t, "<p><strong>second</strong></p>", got.HTMLBody())
	assert.True(t, got.Timestamp.Equal(base))

	_, err = s.Posts.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")
	p := createPost(t, s, a, "post", base)

	for i := 0; i < 3; i++ {
		c, err := model.NewComment(a.ID, p.ID, fmt.Sprintf("comment %d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, s.Comments.Create(ctx, c))
	}

	oldest, err := s.Comments.ListByPost(ctx, p.ID, OldestFirst, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, oldest.Items, 3)
	assert.Equal(t, "comment 0", oldest.Items[0].Body())

	newest, err := s.Comments.ListByPost(ctx, p.ID, NewestFirst, PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, "comment 2", newest.Items[0].Body())

	first := oldest.Items[0]
	require.NoError(t, s.Comments.SetDisabled(ctx, first.ID, true))
	got, err := s.Comments.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)
	assert.Equal(t, "a", got.Author.Username)

	post, err := s.Posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, post.CommentCount)

	assert.ErrorIs(t, s.Comments.SetDisabled(ctx, 999, true), ErrCommentNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createUser(t, s, "a@example.com", "a")

	boom := fmt.Errorf("boom")
	err := s.InTx(ctx, func(tx *Store) error {
		p, err := model.NewPost(a.ID, "lost", base)
		require.NoError(t, err)
		require.NoError(t, tx.Posts.Create(ctx, p))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	n, err := s.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIterPages(t *testing.T) {
	p := Page[int]{Page: 10, PerPage: 1, Total: 30}
	assert.Equal(t, []int{1, 2, 0, 8, 9, 10, 11, 12, 13, 14, 0, 29, 30}, p.IterPages())
	assert.Equal(t, []int{1}, Page[int]{Page: 1, PerPage: 10}.IterPages())
}
