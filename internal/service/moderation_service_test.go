package service

import (
	"context"
	"testing"
	"time"

	"ctfarena/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationService_Dashboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewModerationService(e.users, e.challenges, e.submissions, e.posts, e.solves, e.gate)

	_, err := svc.Dashboard(ctx, e.member)
	assertDenied(t, err)

	challenge := testutil.CreateChallenge(t, e.db, "Stats", 100, "flag{stats}")
	testutil.CreateSolve(t, e.db, e.member.UserID, challenge.ID, time.Now().UTC())
	reviews := newReviewService(e)
	for _, title := range []string{"One", "Two", "Three", "Four", "Five", "Six"} {
		_, err := reviews.Submit(ctx, e.member, proposal(title))
		require.NoError(t, err)
	}
	_, err = NewPostService(e.posts, e.gate).CreatePost(ctx, e.member, CreatePostInput{Title: "Hi", Content: "there"})
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx, e.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.Admins)
	assert.Equal(t, int64(1), stats.Challenges)
	assert.Equal(t, int64(6), stats.PendingSubmissions)
	assert.Equal(t, int64(1), stats.Posts)
	assert.Equal(t, int64(1), stats.Solves)
	require.Len(t, stats.RecentPending, 5)
	assert.Equal(t, "One", stats.RecentPending[0].Title)
}
