package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"ctfarena/internal/models"
	"ctfarena/internal/service"
	"ctfarena/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposal(title, flag string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Find the hidden admin panel.",
		"category":    "Web",
		"difficulty":  "medium",
		"points":      200,
		"flag":        flag,
	}
}

func TestSubmissionReviewFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.challenge(t, "Hidden Panel", 100, "flag{older}")

	var sub models.Submission
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/submissions", ts.memberToken,
		proposal("Hidden Panel", "flag{panel}"), &sub))
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, ts.member.ID, sub.AuthorID)

	var mine []models.Submission
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/submissions/me", ts.memberToken, nil, &mine))
	require.Len(t, mine, 1)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/admin/submissions", ts.memberToken, nil, nil))

	var queue []models.ReviewQueueItem
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/submissions", ts.adminToken, nil, &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, "flag{panel}", queue[0].Flag)
	assert.Len(t, queue[0].SimilarChallenges, 1, "a live challenge with the same title is flagged")

	path := fmt.Sprintf("/api/admin/submissions/%d", sub.ID)
	var approved struct {
		Submission models.Submission     `json:"submission"`
		Challenge  models.AdminChallenge `json:"challenge"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, path+"/approve", ts.adminToken,
		map[string]string{"notes": "nice one"}, &approved))
	assert.Equal(t, models.SubmissionStatusApproved, approved.Submission.Status)
	require.NotNil(t, approved.Submission.ChallengeID)
	assert.Equal(t, models.ProvenanceCommunity, approved.Challenge.Provenance)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, path+"/approve", ts.adminToken, nil, &body))
	assert.Equal(t, models.CodeInvalidTransition, body.Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, path+"/reject", ts.adminToken, nil, nil))

	// the community challenge is live and solvable
	var result service.SubmitFlagResult
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost,
		fmt.Sprintf("/api/challenges/%d/submit", *approved.Submission.ChallengeID),
		ts.adminToken, map[string]string{"flag": "flag{panel}"}, &result))
	assert.Equal(t, models.FlagResultCorrect, result.Result)
}

func TestRejectSubmission(t *testing.T) {
	ts := newTestServer(t)

	var sub models.Submission
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/submissions", ts.memberToken,
		proposal("Broken Crypto", "flag{broken}"), &sub))

	path := fmt.Sprintf("/api/admin/submissions/%d", sub.ID)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, path+"/reject", ts.memberToken, nil, nil))

	var rejected models.Submission
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, path+"/reject", ts.adminToken,
		map[string]string{"notes": "unsolvable"}, &rejected))
	assert.Equal(t, models.SubmissionStatusRejected, rejected.Status)
	assert.Equal(t, "unsolvable", rejected.ReviewNotes)
	assert.Nil(t, rejected.ChallengeID)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, path+"/approve", ts.adminToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/admin/submissions/9999/approve", ts.adminToken, nil, nil))

	var queue []models.ReviewQueueItem
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/submissions?status=rejected", ts.adminToken, nil, &queue))
	assert.Len(t, queue, 1)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/admin/submissions?status=bogus", ts.adminToken, nil, nil))
}

func TestCreateSubmission_Rejections(t *testing.T) {
	ts := newTestServer(t)

	var body models.ErrorResponse
	invalid := proposal("", "flag{x}")
	invalid["points"] = -5
	require.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/submissions", ts.memberToken, invalid, &body))
	assert.Contains(t, body.Fields, "title")
	assert.Contains(t, body.Fields, "points")

	cfg := testConfig()
	cfg.FeatureFlags = "community_submissions=off"
	closed := newTestServerWithConfig(t, cfg)
	assert.Equal(t, http.StatusConflict, closed.do(t, http.MethodPost, "/api/submissions", closed.memberToken,
		proposal("Late Entry", "flag{late}"), nil))
}

func TestAdminChallengeLifecycle(t *testing.T) {
	ts := newTestServer(t)

	req := proposal("Format String", "flag{fmt}")
	req["category"] = "pwn"
	req["hidden"] = true
	var created models.AdminChallenge
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/challenges", ts.adminToken, req, &created))
	assert.Equal(t, "flag{fmt}", created.Flag)
	assert.Equal(t, models.ChallengeStatusHidden, created.Status)
	assert.Equal(t, models.ProvenanceOfficial, created.Provenance)

	path := fmt.Sprintf("/api/admin/challenges/%d", created.ID)
	public := fmt.Sprintf("/api/challenges/%d", created.ID)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, public, "", nil, nil))

	var listed struct {
		Challenges []models.AdminChallenge `json:"challenges"`
		Total      int64                   `json:"total"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/challenges", ts.adminToken, nil, &listed))
	assert.Equal(t, int64(1), listed.Total)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, path+"/unhide", ts.adminToken, nil, nil))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, public, "", nil, nil))

	update := proposal("Format String v2", "flag{fmt2}")
	update["category"] = "pwn"
	var updated models.AdminChallenge
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, path, ts.adminToken, update, &updated))
	assert.Equal(t, "Format String v2", updated.Title)
	assert.Equal(t, "flag{fmt2}", updated.Flag)

	var got models.AdminChallenge
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, ts.adminToken, nil, &got))
	assert.Equal(t, "flag{fmt2}", got.Flag)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, path, ts.memberToken, nil, nil))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, path, ts.adminToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, public, "", nil, nil))
}

func TestAdminImportChallenges(t *testing.T) {
	ts := newTestServer(t)

	pack := `
hidden: false
challenges:
  - title: Caesar
    description: Shift it back.
    category: crypto
    difficulty: easy
    points: 50
    flag: flag{caesar}
  - title: Strings
    description: Look closer.
    category: reverse
    difficulty: easy
    points: 75
    flag: flag{strings}
`
	var out struct {
		Imported int `json:"imported"`
	}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/admin/challenges/import", ts.adminToken, pack, &out))
	assert.Equal(t, 2, out.Imported)

	var page service.ChallengePage
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/challenges", "", nil, &page))
	assert.Equal(t, int64(2), page.Total)

	broken := `
challenges:
  - title: Fine
    description: ok
    category: misc
    difficulty: easy
    points: 10
    flag: flag{fine}
  - title: Broken
    description: no flag
    category: misc
    difficulty: easy
    points: 10
`
	var body models.ErrorResponse
	require.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/admin/challenges/import", ts.adminToken, broken, &body))
	assert.Contains(t, body.Error, "entry 2")
	assert.Contains(t, body.Fields, "flag")

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/challenges", "", nil, &page))
	assert.Equal(t, int64(2), page.Total, "nothing from a rejected pack is written")

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/admin/challenges/import", ts.adminToken, "challenges: []", nil))
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/admin/challenges/import", ts.memberToken, pack, nil))
}

func TestAdminUserManagement(t *testing.T) {
	ts := newTestServer(t)
	bob := testutil.CreateUser(t, ts.db, "bob", models.RoleMember)
	c := ts.challenge(t, "Easy", 100, "flag{easy}")
	testutil.CreateSolve(t, ts.db, ts.member.ID, c.ID, time.Now())

	var listed struct {
		Users []models.User `json:"users"`
		Total int64         `json:"total"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/users", ts.adminToken, nil, &listed))
	assert.Equal(t, int64(3), listed.Total)

	var promoted models.User
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/promote", bob.ID), ts.adminToken, nil, &promoted))
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	var admins []models.User
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/users/admins", ts.adminToken, nil, &admins))
	assert.Len(t, admins, 2)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote", ts.admin.ID), ts.adminToken, nil, &body))
	assert.Equal(t, models.CodeConflict, body.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/demote", bob.ID), ts.adminToken, nil, nil))

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", ts.member.ID), ts.adminToken, nil, nil),
		"accounts with solves are kept")
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", ts.admin.ID), ts.adminToken, nil, nil))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", bob.ID), ts.adminToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", bob.ID), ts.adminToken, nil, nil))
}

func TestAdminDashboardAndReset(t *testing.T) {
	ts := newTestServer(t)
	c := ts.challenge(t, "Easy", 100, "flag{easy}")
	testutil.CreateSolve(t, ts.db, ts.member.ID, c.ID, time.Now())
	testutil.CreateSolve(t, ts.db, ts.admin.ID, c.ID, time.Now())

	var stats service.DashboardStats
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/dashboard", ts.adminToken, nil, &stats))
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.Admins)
	assert.Equal(t, int64(1), stats.Challenges)
	assert.Equal(t, int64(2), stats.Solves)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/admin/reset-solves", ts.memberToken, nil, nil))

	var reset struct {
		Deleted int64 `json:"deleted"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/admin/reset-solves", ts.adminToken, nil, &reset))
	assert.Equal(t, int64(2), reset.Deleted)

	var board []models.LeaderboardEntry
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/scoreboard", "", nil, &board))
	assert.Empty(t, board)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var public map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/feature-flags", ts.memberToken, nil, &public))
	assert.Contains(t, public, "evaluated")
	assert.NotContains(t, public, "raw")

	var staff map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/admin/feature-flags", ts.adminToken, nil, &staff))
	assert.Contains(t, staff, "raw")
}
