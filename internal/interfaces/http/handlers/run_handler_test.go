package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/run"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunRepo struct {
	runs      map[common.ID]*run.Run
	saveErr   error
	updateErr error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[common.ID]*run.Run)}
}

func (f *fakeRunRepo) Save(_ context.Context, r *run.Run) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.runs[r.ID] = r
	return nil
}

func (f *fakeRunRepo) Update(_ context.Context, r *run.Run) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.runs[r.ID] = r
	return nil
}

func (f *fakeRunRepo) GetByID(_ context.Context, id common.ID) (*run.Run, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", id)
	}
	return r, nil
}

func (f *fakeRunRepo) List(_ context.Context, _, _ int) ([]*run.Run, error) {
	out := make([]*run.Run, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

type fakeDispatcher struct {
	jobs       []kafka.PrepareJobPayload
	publishErr error
}

func (f *fakeDispatcher) PublishPrepareJob(_ context.Context, payload kafka.PrepareJobPayload) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.jobs = append(f.jobs, payload)
	return nil
}

type fakeCache struct {
	values map[string]json.RawMessage
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]json.RawMessage)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := f.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	return nil
}

func runTestRouter(h *RunHandler) *gin.Engine {
	r := gin.New()
	r.POST("/runs", h.Submit)
	r.GET("/runs", h.List)
	r.GET("/runs/:runID", h.Get)
	return r
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *common.ErrorDetail `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestSubmitRun(t *testing.T) {
	repo := newFakeRunRepo()
	dispatcher := &fakeDispatcher{}
	h := NewRunHandler(repo, dispatcher, nil, logging.NewNopLogger())
	router := runTestRouter(h)

	w, env := doJSON(t, router, http.MethodPost, "/runs", SubmitRunRequest{
		DatasetName: "pka-train",
		Source:      "s3://raw/chembl.sdf",
		Workers:     4,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, env.Success)

	var created run.Run
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, common.RunPending, created.Status)
	assert.Equal(t, "v1", created.VocabularyVersion)

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, string(created.ID), dispatcher.jobs[0].RunID)
	assert.Equal(t, 4, dispatcher.jobs[0].Workers)
}

func TestSubmitRunMissingFields(t *testing.T) {
	h := NewRunHandler(newFakeRunRepo(), &fakeDispatcher{}, nil, logging.NewNopLogger())
	router := runTestRouter(h)

	w, env := doJSON(t, router, http.MethodPost, "/runs", map[string]string{"dataset_name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, errors.ErrCodeBadRequest.String(), env.Error.Code)
}

func TestSubmitRunDispatchFailureMarksRunFailed(t *testing.T) {
	repo := newFakeRunRepo()
	dispatcher := &fakeDispatcher{publishErr: errors.New(errors.ErrCodeMessageQueueError, "broker down")}
	h := NewRunHandler(repo, dispatcher, nil, logging.NewNopLogger())
	router := runTestRouter(h)

	w, env := doJSON(t, router, http.MethodPost, "/runs", SubmitRunRequest{
		DatasetName: "pka-train",
		Source:      "s3://raw/chembl.sdf",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)

	require.Len(t, repo.runs, 1)
	for _, r := range repo.runs {
		assert.Equal(t, common.RunFailed, r.Status)
		assert.NotEmpty(t, r.Error)
	}
}

func TestGetRunNotFound(t *testing.T) {
	h := NewRunHandler(newFakeRunRepo(), &fakeDispatcher{}, nil, logging.NewNopLogger())
	router := runTestRouter(h)

	w, env := doJSON(t, router, http.MethodGet, "/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, errors.ErrCodeRunNotFound.String(), env.Error.Code)
}

func TestGetRunCachesTerminalRuns(t *testing.T) {
	repo := newFakeRunRepo()
	cache := newFakeCache()
	h := NewRunHandler(repo, &fakeDispatcher{}, cache, logging.NewNopLogger())
	router := runTestRouter(h)

	r := run.New("pka-train", "v1", "file.sdf")
	r.Start()
	require.NoError(t, repo.Save(context.Background(), r))

	// running runs are not cached
	w, _ := doJSON(t, router, http.MethodGet, "/runs/"+string(r.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cache.values)

	r.Complete(nil)
	require.NoError(t, repo.Update(context.Background(), r))

	w, _ = doJSON(t, router, http.MethodGet, "/runs/"+string(r.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, cache.values, "run:"+string(r.ID))

	// cached copy served even after the repository forgets the run
	delete(repo.runs, r.ID)
	w, env := doJSON(t, router, http.MethodGet, "/runs/"+string(r.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cached run.Run
	require.NoError(t, json.Unmarshal(env.Data, &cached))
	assert.Equal(t, common.RunCompleted, cached.Status)
}

func TestListRuns(t *testing.T) {
	repo := newFakeRunRepo()
	require.NoError(t, repo.Save(context.Background(), run.New("a", "v1", "a.sdf")))
	require.NoError(t, repo.Save(context.Background(), run.New("b", "v1", "b.sdf")))

	h := NewRunHandler(repo, &fakeDispatcher{}, nil, logging.NewNopLogger())
	router := runTestRouter(h)

	w, env := doJSON(t, router, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var runs []*run.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 2)
}
