// Package api serves the HTTP endpoints: health, water level listing and gate commands.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/edgeflare/eelytics/pkg/bridge"
	"github.com/edgeflare/eelytics/pkg/httputil"
	"github.com/edgeflare/eelytics/pkg/httputil/middleware"
	"github.com/edgeflare/eelytics/pkg/store"
	"go.uber.org/zap"
)

const (
	healthStatus      = "Eelytics API is Live"
	dbStatusOK        = "ok"
	dbStatusError     = "error"
	msgInvalidCommand = "Invalid command"
	msgCommandSent    = "Command sent"
)

// LevelStore reads persisted readings. *store.Store implements it.
type LevelStore interface {
	ListReadings(ctx context.Context) ([]store.Reading, error)
	Ping(ctx context.Context) error
}

// GateCommander sends gate commands. *bridge.Bridge implements it.
type GateCommander interface {
	SendGateCommand(ctx context.Context, tankID int, action bridge.GateAction) error
	Connected() bool
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	store  LevelStore
	gates  GateCommander
	logger *zap.Logger
}

// NewHandlers returns handlers reading from s and sending commands through g.
func NewHandlers(s LevelStore, g GateCommander, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: s, gates: g, logger: logger}
}

// Register mounts the routes on r.
func (h *Handlers) Register(r *httputil.Router) {
	r.HandleFunc("GET /{$}", h.Health)

	api := r.Group("/api")
	api.HandleFunc("GET /levels", h.ListLevels)
	api.HandleFunc("POST /command/gate/{id}", h.SendGateCommand)
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status         string `json:"status"`
	MQTTStatus     bool   `json:"mqtt_status"`
	DBStatus       string `json:"db_status"`
	DBErrorMessage string `json:"db_error_message,omitempty"`
}

// Health reports broker and store reachability. It always responds 200.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     healthStatus,
		MQTTStatus: h.gates.Connected(),
		DBStatus:   dbStatusOK,
	}
	if err := h.store.Ping(r.Context()); err != nil {
		resp.DBStatus = dbStatusError
		resp.DBErrorMessage = err.Error()
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// ListLevels returns every reading, newest first.
func (h *Handlers) ListLevels(w http.ResponseWriter, r *http.Request) {
	readings, err := h.store.ListReadings(r.Context())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error("list readings", zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, readings)
}

// GateCommandRequest is the body of POST /api/command/gate/{id}. Action is decoded loosely so
// that a non-string action is rejected as an invalid command rather than a malformed body.
type GateCommandRequest struct {
	Action any `json:"action"`
}

// GateCommandResponse acknowledges a published command.
type GateCommandResponse struct {
	Status string `json:"status"`
	TankID int    `json:"tank_id"`
	Action string `json:"action"`
}

// SendGateCommand validates the action and publishes it to the gate of {id}.
func (h *Handlers) SendGateCommand(w http.ResponseWriter, r *http.Request) {
	// only integer ids match the route
	tankID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	var req GateCommandRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	name, _ := req.Action.(string)
	action, err := bridge.ParseGateAction(name)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, msgInvalidCommand)
		return
	}

	if err := h.gates.SendGateCommand(r.Context(), tankID, action); err != nil {
		middleware.LoggerFromContext(r.Context()).Error("send gate command",
			zap.Int("tank_id", tankID), zap.String("action", string(action)), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, bridge.ErrInvalidAction) {
			status = http.StatusBadRequest
		}
		httputil.Error(w, status, err.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, GateCommandResponse{
		Status: msgCommandSent,
		TankID: tankID,
		Action: string(action),
	})
}
