package services

import (
	"context"
	"testing"

	"socialconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowIsIdempotent(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	edge, created, err := s.follows.Follow(ctx, alice, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, bob.ID, edge.FollowingID)

	again, created, err := s.follows.Follow(ctx, alice, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, edge.ID, again.ID)

	stats, err := s.follows.Stats(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FollowersCount)
	assert.Equal(t, []uint{alice.ID}, stats.FollowerIDs)

	// only the first follow notifies
	assert.EqualValues(t, 1, countNotifications(t, s.db, bob.ID))
}

func TestFollowRejectsSelf(t *testing.T) {
	s := newTestServices(t)
	alice := createUser(t, s.db, "alice")

	_, _, err := s.follows.Follow(context.Background(), alice, alice.ID)
	assert.ErrorIs(t, err, ErrSelfFollow)

	stats, err := s.follows.Stats(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.FollowersCount)
	assert.Zero(t, stats.FollowingCount)
}

func TestFollowMissingTarget(t *testing.T) {
	s := newTestServices(t)
	alice := createUser(t, s.db, "alice")

	_, _, err := s.follows.Follow(context.Background(), alice, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.follows.Unfollow(context.Background(), alice.ID, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUnfollow(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	removed, err := s.follows.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, _, err = s.follows.Follow(ctx, alice, bob.ID)
	require.NoError(t, err)

	removed, err = s.follows.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	following, err := s.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestListFollowersAndFollowing(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	carol := createUser(t, s.db, "carol")

	for _, u := range []uint{bob.ID, carol.ID} {
		_, _, err := s.follows.Follow(ctx, alice, u)
		require.NoError(t, err)
	}
	_, _, err := s.follows.Follow(ctx, carol, bob.ID)
	require.NoError(t, err)

	following, err := s.follows.ListFollowing(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.Equal(t, "bob", following[0].Following.Username)
	assert.Equal(t, "carol", following[1].Following.Username)

	followers, err := s.follows.ListFollowers(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, "alice", followers[0].Follower.Username)
	assert.Equal(t, "carol", followers[1].Follower.Username)

	ids, err := s.follows.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{bob.ID, carol.ID}, ids)
}

func TestFollowLosesInsertRace(t *testing.T) {
	s := newRaceServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	var winner *models.Follow
	collideOnCreate(t, s.db, "follows", func(ctx context.Context) {
		edge, created, err := s.follows.Follow(ctx, alice, bob.ID)
		require.NoError(t, err)
		require.True(t, created)
		winner = edge
	})

	edge, created, err := s.follows.Follow(ctx, alice, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, edge.ID)

	stats, err := s.follows.Stats(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FollowersCount)
	assert.EqualValues(t, 1, countNotifications(t, s.db, bob.ID))
}
