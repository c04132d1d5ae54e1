package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coolsim/internal/plant"
	"coolsim/internal/repository"
	"coolsim/internal/service"
	"coolsim/internal/session"
	"coolsim/internal/testutil"
)

type muxAdapter struct{ *http.ServeMux }

func (m muxAdapter) HandleFunc(pattern string, handler http.HandlerFunc) {
	m.ServeMux.HandleFunc(pattern, handler)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, eng *testutil.FakeEngine) (*httptest.Server, *service.SimulationService) {
	t.Helper()

	dir := testutil.WriteResources(t)
	table, estimator, warmup, baseline, err := session.LoadResources(dir, 300)
	require.NoError(t, err)

	sess, err := session.New(session.Config{BaseUnit: 300, Horizon: testutil.Horizon, Step: 300},
		eng, table, estimator, warmup, baseline)
	require.NoError(t, err)

	svc := service.NewSimulationService(
		sess, repository.NewMemoryStepRecordRepository(), "AlphaDataCenterCooling", "0.2.0")

	mux := http.NewServeMux()
	NewSimulationHandler(svc).Register(muxAdapter{mux})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, resp.StatusCode, env.Status, "envelope status must mirror the HTTP status")
	return resp.StatusCode, env
}

func decodePayload[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Payload, &out))
	return out
}

func initialize(t *testing.T, srv *httptest.Server, startTime float64) envelope {
	t.Helper()
	code, env := doRequest(t, srv, http.MethodPut, "/initialize",
		map[string]any{"start_time": startTime})
	require.Equal(t, http.StatusOK, code, "initialize failed: %s", env.Message)
	return env
}

func TestInitialize_Zero(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	env := initialize(t, srv, 0)
	assert.Equal(t, "Simulation initialized successfully to 0s.", env.Message)

	state := decodePayload[map[string]float64](t, env)
	assert.Equal(t, 0.0, state["time"])
	assert.Len(t, state, 1+plant.OutputCount()+plant.ControlCount())
}

func TestInitialize_WithWarmup(t *testing.T) {
	eng := testutil.NewFakeEngine()
	srv, _ := newTestServer(t, eng)

	code, env := doRequest(t, srv, http.MethodPut, "/initialize",
		map[string]any{"start_time": 600, "end_time": 1200})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Simulation initialized successfully to 600s with warmup period of 300s.", env.Message)

	state := decodePayload[map[string]float64](t, env)
	assert.Equal(t, 600.0, state["time"])
	assert.Equal(t, 1, eng.ResetCalls)
	assert.Equal(t, 1, eng.SimulateCalls)
}

func TestInitialize_MissingStartTime(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodPut, "/initialize", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "start_time is required")
}

func TestInitialize_InvalidStartTime(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodPut, "/initialize",
		map[string]any{"start_time": -300})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "start_time")
}

func TestInitialize_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/initialize",
		strings.NewReader("{not json"))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdvance_FullFrame(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	frame := plant.DefaultControls()
	frame["CHI01"] = 1
	frame["CHI02"] = 1

	code, env := doRequest(t, srv, http.MethodPost, "/advance", frame)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Advanced simulation successfully from 0s to 300s.", env.Message)

	state := decodePayload[map[string]float64](t, env)
	assert.Equal(t, 300.0, state["time"])
	assert.Equal(t, 304000.0, state["P_Chillers_sum"])
	assert.Equal(t, 1.0, state["CHI01"])
}

func TestAdvance_BeforeInitialize(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodPost, "/advance", plant.DefaultControls())
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "initialize")
}

func TestAdvance_NullValueTreatedAsZero(t *testing.T) {
	eng := testutil.NewFakeEngine()
	srv, _ := newTestServer(t, eng)
	initialize(t, srv, 0)

	frame := make(map[string]any, plant.ControlCount())
	for name, v := range plant.DefaultControls() {
		frame[name] = v
	}
	frame["CHI01"] = nil

	code, _ := doRequest(t, srv, http.MethodPost, "/advance", frame)
	require.Equal(t, http.StatusOK, code)

	idx := -1
	for i, name := range eng.LastInput.Names {
		if name == "CHI01" {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	assert.Equal(t, 0.0, eng.LastInput.Values[idx])
}

func TestAdvance_StringNumbersAccepted(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	frame := make(map[string]any, plant.ControlCount())
	for name, v := range plant.DefaultControls() {
		frame[name] = v
	}
	frame["U_CT1"] = "1"
	frame["Tchws_set_CHI"] = "286.55"

	code, _ := doRequest(t, srv, http.MethodPost, "/advance", frame)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdvance_NonNumericValueRejected(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	frame := make(map[string]any, plant.ControlCount())
	for name, v := range plant.DefaultControls() {
		frame[name] = v
	}
	frame["CHI01"] = true

	code, env := doRequest(t, srv, http.MethodPost, "/advance", frame)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "CHI01")
}

func TestAdvance_IncompleteFrame(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	code, env := doRequest(t, srv, http.MethodPost, "/advance",
		map[string]any{"CHI01": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "missing")
}

func TestAdvance_UnknownInput(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	frame := plant.DefaultControls()
	frame["CHI07"] = 1

	code, env := doRequest(t, srv, http.MethodPost, "/advance", frame)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "CHI07")
}

func TestAdvance_EngineFailure(t *testing.T) {
	eng := testutil.NewFakeEngine()
	srv, _ := newTestServer(t, eng)
	initialize(t, srv, 0)

	eng.FailSimulate = 1
	code, _ := doRequest(t, srv, http.MethodPost, "/advance", plant.DefaultControls())
	assert.Equal(t, http.StatusInternalServerError, code)

	// Время не продвинулось, повтор проходит
	code, env := doRequest(t, srv, http.MethodPost, "/advance", plant.DefaultControls())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Advanced simulation successfully from 0s to 300s.", env.Message)
}

func TestStep_GetAndSet(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodGet, "/step", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(300), decodePayload[int64](t, env))

	code, env = doRequest(t, srv, http.MethodPut, "/step", map[string]any{"step": 600})
	require.Equal(t, http.StatusOK, code)
	payload := decodePayload[map[string]int64](t, env)
	assert.Equal(t, int64(600), payload["step"])

	code, env = doRequest(t, srv, http.MethodGet, "/step", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(600), decodePayload[int64](t, env))
}

func TestStep_InvalidValues(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	for _, step := range []float64{0, -300, 450} {
		code, env := doRequest(t, srv, http.MethodPut, "/step", map[string]any{"step": step})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, env.Message, "step")
	}

	code, _ := doRequest(t, srv, http.MethodPut, "/step", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInputsAndMeasurements(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodGet, "/inputs", nil)
	require.Equal(t, http.StatusOK, code)
	inputs := decodePayload[map[string]plant.Metadata](t, env)
	assert.Len(t, inputs, plant.ControlCount())
	assert.NotEmpty(t, inputs["CHI01"].Description)

	code, env = doRequest(t, srv, http.MethodGet, "/measurements", nil)
	require.Equal(t, http.StatusOK, code)
	outputs := decodePayload[map[string]plant.Metadata](t, env)
	assert.Len(t, outputs, plant.OutputCount())
	assert.NotEmpty(t, outputs["P_Chillers_sum"].Description)
}

func TestResults(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	for i := 0; i < 3; i++ {
		code, _ := doRequest(t, srv, http.MethodPost, "/advance", plant.DefaultControls())
		require.Equal(t, http.StatusOK, code)
	}

	code, env := doRequest(t, srv, http.MethodPut, "/results", map[string]any{
		"point_names": []string{"Pchi1", "CHI01"},
		"start_time":  0,
		"final_time":  600,
	})
	require.Equal(t, http.StatusOK, code)

	payload := decodePayload[map[string][]float64](t, env)
	assert.Equal(t, []float64{300, 600}, payload["time"])
	assert.Len(t, payload["Pchi1"], 2)
	assert.Len(t, payload["CHI01"], 2)
}

func TestResults_UnknownPoint(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	code, env := doRequest(t, srv, http.MethodPut, "/results", map[string]any{
		"point_names": []string{"NotAPoint"},
		"start_time":  0,
		"final_time":  600,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "NotAPoint")
}

func TestResults_MissingParameters(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, _ := doRequest(t, srv, http.MethodPut, "/results",
		map[string]any{"start_time": 0, "final_time": 600})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, srv, http.MethodPut, "/results",
		map[string]any{"point_names": []string{"Pchi1"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNameAndVersion(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodGet, "/name", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AlphaDataCenterCooling", decodePayload[map[string]string](t, env)["name"])

	code, env = doRequest(t, srv, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.2.0", decodePayload[map[string]string](t, env)["version"])
}

func TestCurrentState(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	code, env := doRequest(t, srv, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, code)

	state := decodePayload[map[string]float64](t, env)
	assert.Equal(t, 0.0, state["time"])
}

func TestRuns_ListQueryAndDelete(t *testing.T) {
	srv, svc := newTestServer(t, testutil.NewFakeEngine())
	initialize(t, srv, 0)

	frame := plant.DefaultControls()
	frame["CHI01"] = 1
	code, _ := doRequest(t, srv, http.MethodPost, "/advance", frame)
	require.Equal(t, http.StatusOK, code)

	// Запись шага идёт мимо горячего пути, дожидаемся её появления
	runID := svc.RunID()
	require.Eventually(t, func() bool {
		steps, _, err := svc.RunSteps(context.Background(), runID, 0)
		return err == nil && len(steps) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, env := doRequest(t, srv, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, code)
	runs := decodePayload[[]service.RunInfo](t, env)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, int64(1), runs[0].Steps)

	code, env = doRequest(t, srv, http.MethodGet, "/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, code)
	steps := decodePayload[[]service.RunStep](t, env)
	require.Len(t, steps, 1)
	assert.Equal(t, 300.0, steps[0].SimTime)

	var controls map[string]float64
	require.NoError(t, json.Unmarshal(steps[0].Controls, &controls))
	assert.Equal(t, 1.0, controls["CHI01"])

	code, env = doRequest(t, srv, http.MethodDelete, "/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, env.Message, runID)

	code, _ = doRequest(t, srv, http.MethodGet, "/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRuns_UnknownRun(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodGet, "/runs/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, env.Message, "no-such-run")

	code, _ = doRequest(t, srv, http.MethodDelete, "/runs/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRuns_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t, testutil.NewFakeEngine())

	code, env := doRequest(t, srv, http.MethodGet, "/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "limit")

	code, _ = doRequest(t, srv, http.MethodGet, "/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRunIDChangesOnInitialize(t *testing.T) {
	srv, svc := newTestServer(t, testutil.NewFakeEngine())

	initialize(t, srv, 0)
	first := svc.RunID()
	require.NotEmpty(t, first)

	initialize(t, srv, 0)
	assert.NotEqual(t, first, svc.RunID())
}
