package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"socialconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")

	post, err := s.posts.Create(ctx, alice, PostInput{Content: "**hi** <script>x</script>"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryGeneral, post.Category)
	assert.True(t, post.IsActive)
	assert.Equal(t, "alice", post.User.Username)
	assert.Contains(t, post.ContentHTML, "<strong>hi</strong>")
	assert.NotContains(t, post.ContentHTML, "<script>")
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServices(t)
	alice := createUser(t, s.db, "alice")

	tests := []struct {
		name string
		in   PostInput
	}{
		{"blank", PostInput{Content: "  "}},
		{"too long", PostInput{Content: strings.Repeat("a", 281)}},
		{"bad category", PostInput{Content: "ok", Category: "rant"}},
		{"bad image", PostInput{Content: "ok", Image: &ImageUpload{Filename: "a.gif", Data: gifBytes}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.posts.Create(context.Background(), alice, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, s.storage.uploads)
}

func TestCreatePostWithImage(t *testing.T) {
	s := newTestServices(t)
	alice := createUser(t, s.db, "alice")

	post, err := s.posts.Create(context.Background(), alice, PostInput{
		Content:  "look",
		Category: models.CategoryQuestion,
		Image:    &ImageUpload{Filename: "my cat.png", Data: pngBytes},
	})
	require.NoError(t, err)
	require.Len(t, s.storage.uploads, 1)
	assert.Equal(t, fmt.Sprintf("posts/posts/%d_my_cat.png", post.ID), s.storage.uploads[0])
	assert.Equal(t, "https://cdn.test/"+s.storage.uploads[0], post.ImageURL)
}

func TestCreatePostUploadFailureRollsBack(t *testing.T) {
	s := newTestServices(t)
	alice := createUser(t, s.db, "alice")
	s.storage.err = Upstream("storage upload", assert.AnError)

	_, err := s.posts.Create(context.Background(), alice, PostInput{
		Content: "look",
		Image:   &ImageUpload{Filename: "a.jpg", Data: jpegBytes},
	})
	assert.ErrorIs(t, err, ErrUpstream)

	var n int64
	require.NoError(t, s.db.Model(&models.Post{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdatePost(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	post := createPost(t, s.db, alice, "draft")

	content := "final"
	_, err := s.posts.Update(ctx, bob, post.ID, PostUpdate{Content: &content})
	assert.ErrorIs(t, err, ErrForbidden)

	cat := models.CategoryAnnouncement
	updated, err := s.posts.Update(ctx, alice, post.ID, PostUpdate{Content: &content, Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)
	assert.Equal(t, models.CategoryAnnouncement, updated.Category)
	assert.True(t, updated.IsActive)

	empty := ""
	_, err = s.posts.Update(ctx, alice, post.ID, PostUpdate{Content: &empty})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeletePostCascades(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	post := createPost(t, s.db, alice, "bye")

	_, _, err := s.engagement.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	_, err = s.engagement.AddComment(ctx, bob, post.ID, "hi")
	require.NoError(t, err)
	require.EqualValues(t, 2, countNotifications(t, s.db, alice.ID))

	assert.ErrorIs(t, s.posts.Delete(ctx, bob, post.ID), ErrForbidden)
	require.NoError(t, s.posts.Delete(ctx, alice, post.ID))

	for _, m := range []any{&models.Post{}, &models.Like{}, &models.Comment{}} {
		var n int64
		require.NoError(t, s.db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
	assert.Zero(t, countNotifications(t, s.db, alice.ID))

	_, err = s.posts.Get(ctx, alice, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestInactivePostVisibility(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	staff := createUser(t, s.db, "staff")
	staff.IsStaff = true
	active := createPost(t, s.db, alice, "visible")
	hidden := createPost(t, s.db, alice, "hidden")
	deactivatePost(t, s.db, hidden)

	_, err := s.posts.Get(ctx, bob, hidden.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = s.posts.Get(ctx, alice, hidden.ID)
	assert.NoError(t, err)
	_, err = s.posts.Get(ctx, staff, hidden.ID)
	assert.NoError(t, err)

	list, err := s.posts.ListActive(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	mine, err := s.posts.ListByAuthor(ctx, alice, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := s.posts.ListByAuthor(ctx, bob, alice.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	all, err := s.posts.ListAll(ctx, staff)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSetActive(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	post := createPost(t, s.db, alice, "x")

	got, err := s.posts.SetActive(ctx, post.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = s.posts.SetActive(ctx, post.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = s.posts.SetActive(ctx, 999, false)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
