// Package handlers реализует REST границу сервиса. Каждый ответ несёт
// HTTP статус, человекочитаемое сообщение и структурированный payload;
// статус продублирован в теле ответа.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"coolsim/internal/plant"
	"coolsim/internal/service"
	"coolsim/pkg/apperror"
	"coolsim/pkg/logger"
)

// Response единый конверт ответа
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

// SimulationHandler HTTP обработчики операций симуляции
type SimulationHandler struct {
	svc *service.SimulationService
}

// NewSimulationHandler создаёт обработчик
func NewSimulationHandler(svc *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{svc: svc}
}

// Register регистрирует маршруты
func (h *SimulationHandler) Register(mux interface {
	HandleFunc(pattern string, handler http.HandlerFunc)
}) {
	mux.HandleFunc("PUT /initialize", h.Initialize)
	mux.HandleFunc("POST /advance", h.Advance)
	mux.HandleFunc("GET /step", h.GetStep)
	mux.HandleFunc("PUT /step", h.SetStep)
	mux.HandleFunc("GET /inputs", h.Inputs)
	mux.HandleFunc("GET /measurements", h.Measurements)
	mux.HandleFunc("PUT /results", h.Results)
	mux.HandleFunc("GET /name", h.Name)
	mux.HandleFunc("GET /version", h.Version)
	mux.HandleFunc("GET /state", h.CurrentState)
	mux.HandleFunc("GET /runs", h.Runs)
	mux.HandleFunc("GET /runs/{run_id}", h.RunSteps)
	mux.HandleFunc("DELETE /runs/{run_id}", h.DeleteRun)
}

type initializeRequest struct {
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// Initialize PUT /initialize
func (h *SimulationHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.StartTime == nil {
		writeError(w, apperror.New(apperror.CodeValidation,
			"parameter start_time is required").WithField("start_time"))
		return
	}

	state, message, err := h.svc.Initialize(r.Context(), *req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, state)
}

// Advance POST /advance
func (h *SimulationHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, err)
		return
	}

	controls := make(plant.ControlFrame, len(raw))
	for key, val := range raw {
		switch v := val.(type) {
		case nil:
			// null трактуется как выключено/закрыто
			controls[key] = 0
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				writeError(w, apperror.Newf(apperror.CodeInvalidValue,
					"invalid value %s for input %s: value must be a number", v, key).
					WithField(key))
				return
			}
			controls[key] = f
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, apperror.Newf(apperror.CodeInvalidValue,
					"invalid value %q for input %s: value must be convertible to a number", v, key).
					WithField(key))
				return
			}
			controls[key] = f
		default:
			writeError(w, apperror.Newf(apperror.CodeInvalidValue,
				"invalid value %v for input %s: value must be a number", val, key).
				WithField(key))
			return
		}
	}

	state, message, err := h.svc.Advance(r.Context(), controls)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, state)
}

// GetStep GET /step
func (h *SimulationHandler) GetStep(w http.ResponseWriter, r *http.Request) {
	step, message := h.svc.GetStep()
	writeOK(w, message, step)
}

type stepRequest struct {
	Step *float64 `json:"step"`
}

// SetStep PUT /step
func (h *SimulationHandler) SetStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Step == nil {
		writeError(w, apperror.New(apperror.CodeValidation,
			"parameter step is required").WithField("step"))
		return
	}

	payload, message, err := h.svc.SetStep(*req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, payload)
}

// Inputs GET /inputs
func (h *SimulationHandler) Inputs(w http.ResponseWriter, r *http.Request) {
	payload, message := h.svc.Inputs()
	writeOK(w, message, payload)
}

// Measurements GET /measurements
func (h *SimulationHandler) Measurements(w http.ResponseWriter, r *http.Request) {
	payload, message := h.svc.Measurements()
	writeOK(w, message, payload)
}

type resultsRequest struct {
	PointNames []string `json:"point_names"`
	StartTime  *float64 `json:"start_time"`
	FinalTime  *float64 `json:"final_time"`
}

// Results PUT /results
func (h *SimulationHandler) Results(w http.ResponseWriter, r *http.Request) {
	var req resultsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.PointNames) == 0 {
		writeError(w, apperror.New(apperror.CodeValidation,
			"parameter point_names is required").WithField("point_names"))
		return
	}
	if req.StartTime == nil || req.FinalTime == nil {
		writeError(w, apperror.New(apperror.CodeValidation,
			"parameters start_time and final_time are required"))
		return
	}

	payload, message, err := h.svc.Results(req.PointNames, *req.StartTime, *req.FinalTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, payload)
}

// Name GET /name
func (h *SimulationHandler) Name(w http.ResponseWriter, r *http.Request) {
	payload, message := h.svc.Name()
	writeOK(w, message, payload)
}

// Version GET /version
func (h *SimulationHandler) Version(w http.ResponseWriter, r *http.Request) {
	payload, message := h.svc.Version()
	writeOK(w, message, payload)
}

// CurrentState GET /state
func (h *SimulationHandler) CurrentState(w http.ResponseWriter, r *http.Request) {
	payload, message := h.svc.CurrentState()
	writeOK(w, message, payload)
}

// Runs GET /runs
func (h *SimulationHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	payload, message, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, payload)
}

// RunSteps GET /runs/{run_id}
func (h *SimulationHandler) RunSteps(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	payload, message, err := h.svc.RunSteps(r.Context(), r.PathValue("run_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, payload)
}

// DeleteRun DELETE /runs/{run_id}
func (h *SimulationHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	message, err := h.svc.DeleteRun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, nil)
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperror.Newf(apperror.CodeValidation,
			"invalid value %q for parameter limit", raw).WithField("limit")
	}
	return limit, nil
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.UseNumber()

	if err := decoder.Decode(out); err != nil {
		return apperror.Wrap(err, apperror.CodeValidation, "request body is not valid JSON")
	}
	return nil
}

func writeOK(w http.ResponseWriter, message string, payload any) {
	writeResponse(w, http.StatusOK, message, payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)

	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	writeResponse(w, status, message, nil)
}

func writeResponse(w http.ResponseWriter, status int, message string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Status:  status,
		Message: message,
		Payload: payload,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Log.Error("Failed to encode response", "error", err)
	}
}
