package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/models"
)

func dumpAt(session string, ended time.Time, failing ...string) models.RunDump {
	d := models.RunDump{Summary: models.RunSummary{
		SessionID:  session,
		EndedAt:    ended,
		TotalTests: 10,
		Failed:     len(failing),
	}}
	for _, name := range failing {
		d.Failures = append(d.Failures, models.FailureRecord{
			ID:       "err_" + name,
			Category: models.CategoryAssertionFailure,
			Message:  "expect failed",
			Context: models.FailureContext{
				TestName: name,
				Details: models.NewAssertionCategoryDetails(&models.AssertionDetails{
					Operation: "toBe", ExpectedValue: "1", ActualValue: "2",
				}),
			},
		})
	}
	return d
}

func openTemp(t *testing.T) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive")
	a, err := Open(arbor.NewLogger(), path, false)
	require.NoError(t, err)
	return a, path
}

func TestSaveAndRecentRunsOldestFirst(t *testing.T) {
	a, _ := openTemp(t)
	defer a.Close()
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	// saved out of order on purpose
	for _, i := range []int{2, 0, 4, 1, 3} {
		require.NoError(t, a.SaveRun(ctx, dumpAt(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Hour), "A")))
	}

	all, err := a.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, run := range all {
		assert.Equal(t, fmt.Sprintf("run_%d", i), run.Summary.SessionID)
	}

	recent, err := a.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "run_3", recent[0].Summary.SessionID)
	assert.Equal(t, "run_4", recent[1].Summary.SessionID)

	require.Len(t, recent[1].Failures, 1)
	require.NotNil(t, recent[1].Failures[0].Context.Details)
	assert.Equal(t, "toBe", recent[1].Failures[0].Context.Details.Assertion.Operation)
}

func TestSaveRunReplacesSameSession(t *testing.T) {
	a, _ := openTemp(t)
	defer a.Close()
	ctx := context.Background()
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveRun(ctx, dumpAt("run_x", at, "A")))
	require.NoError(t, a.SaveRun(ctx, dumpAt("run_x", at, "A", "B")))

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runs, err := a.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Failures, 2)
}

func TestSaveRunRequiresSession(t *testing.T) {
	a, _ := openTemp(t)
	defer a.Close()
	assert.Error(t, a.SaveRun(context.Background(), models.RunDump{}))
}

func TestOpenResetClearsArchive(t *testing.T) {
	a, path := openTemp(t)
	require.NoError(t, a.SaveRun(context.Background(), dumpAt("run_1", time.Now(), "A")))
	require.NoError(t, a.Close())

	reopened, err := Open(arbor.NewLogger(), path, false)
	require.NoError(t, err)
	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, reopened.Close())

	reset, err := Open(arbor.NewLogger(), path, true)
	require.NoError(t, err)
	defer reset.Close()
	n, err = reset.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruneKeepsMostRecent(t *testing.T) {
	a, _ := openTemp(t)
	defer a.Close()
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.SaveRun(ctx, dumpAt(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	deleted, err := a.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = a.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	runs, err := a.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_3", runs[0].Summary.SessionID)
	assert.Equal(t, "run_4", runs[1].Summary.SessionID)
}
