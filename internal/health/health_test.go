package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/model"
)

type fakeState struct {
	state model.ProcessState
	fails int
}

func (f *fakeState) Load(context.Context) (model.ProcessState, bool, error) {
	if f.fails > 0 {
		f.fails--
		return model.ProcessState{}, false, errors.New("connection refused")
	}
	return f.state, true, nil
}

type fakeHead struct {
	head  uint64
	fails int
	calls int
}

func (f *fakeHead) LatestBlockNumber(context.Context) (uint64, error) {
	f.calls++
	if f.fails > 0 {
		f.fails--
		return 0, errors.New("timeout")
	}
	return f.head, nil
}

func appliedAt(block uint64) *model.EventPosition {
	return &model.EventPosition{BlockNumber: block}
}

func newTestChecker(t *testing.T, state *fakeState, head *fakeHead, tolerance uint64) *Checker {
	t.Helper()
	c, err := NewChecker(state, head, Options{MaxRetries: 3, RetryBaseDelay: time.Millisecond, SyncTolerance: tolerance}, nil)
	require.NoError(t, err)
	return c
}

func TestCheckSyncedWithinTolerance(t *testing.T) {
	c := newTestChecker(t, &fakeState{state: model.ProcessState{LastApplied: appliedAt(995)}}, &fakeHead{head: 1000}, 5)

	status, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Synced)
	assert.Equal(t, StatusHealthy, status.Health)
	assert.Equal(t, uint64(1000), status.ChainHeadBlock)
	assert.Equal(t, uint64(995), status.LatestBlock)
	assert.True(t, status.OK())

	lagging := newTestChecker(t, &fakeState{state: model.ProcessState{LastApplied: appliedAt(990)}}, &fakeHead{head: 1000}, 5)
	status, err = lagging.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Synced)
	assert.False(t, status.OK())
}

func TestCheckReportsFatalError(t *testing.T) {
	fatal := &model.FatalError{Message: "ordering violation", Handler: model.EventMint, Position: model.EventPosition{BlockNumber: 12}}
	c := newTestChecker(t, &fakeState{state: model.ProcessState{LastApplied: appliedAt(11), FatalError: fatal}}, &fakeHead{head: 11}, 0)

	status, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Health)
	assert.True(t, status.Synced)
	require.NotNil(t, status.FatalError)
	assert.Equal(t, model.EventMint, status.FatalError.Handler)
	assert.False(t, status.OK())
}

func TestCheckRetriesTransientFailures(t *testing.T) {
	head := &fakeHead{head: 10, fails: 2}
	c := newTestChecker(t, &fakeState{fails: 1}, head, 100)

	status, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, head.calls)
	assert.True(t, status.Synced, "nothing indexed yet but within tolerance")

	exhausted := newTestChecker(t, &fakeState{}, &fakeHead{fails: 10}, 0)
	_, err = exhausted.Check(context.Background())
	assert.Error(t, err)
}

func TestRouterStatusCodes(t *testing.T) {
	healthy := newTestChecker(t, &fakeState{state: model.ProcessState{LastApplied: appliedAt(10)}}, &fakeHead{head: 10}, 0)
	rec := httptest.NewRecorder()
	NewRouter(healthy, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body.Health)
	assert.Equal(t, uint64(10), body.LatestBlock)

	behind := newTestChecker(t, &fakeState{}, &fakeHead{head: 10}, 0)
	rec = httptest.NewRecorder()
	NewRouter(behind, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	down := newTestChecker(t, &fakeState{}, &fakeHead{fails: 10}, 0)
	rec = httptest.NewRecorder()
	NewRouter(down, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = httptest.NewRecorder()
	NewRouter(down, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewRouter(down, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSchedulerCachesLatestStatus(t *testing.T) {
	head := &fakeHead{head: 10}
	c := newTestChecker(t, &fakeState{state: model.ProcessState{LastApplied: appliedAt(10)}}, head, 0)

	_, err := NewScheduler(context.Background(), c, "not a cron expression", time.Second, nil)
	assert.Error(t, err)

	s, err := NewScheduler(context.Background(), c, "*/30 * * * * *", time.Second, nil)
	require.NoError(t, err)

	status, err := s.Report(context.Background())
	require.NoError(t, err)
	assert.True(t, status.OK())
	assert.Equal(t, 1, head.calls, "no scheduled result yet, so Report checks directly")

	s.run(context.Background())
	head.head = 50
	status, err = s.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), status.ChainHeadBlock)
	assert.Equal(t, 2, head.calls)

	s.Start()
	s.Stop()
}
