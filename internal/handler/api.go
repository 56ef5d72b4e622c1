package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/agent"
	"lanwatch/internal/connector"
	"lanwatch/internal/discovery"
	"lanwatch/internal/domain"
	"lanwatch/internal/secrets"
	"lanwatch/internal/service"
)

// Request headers carrying the agent signature.
const (
	HeaderTimestamp = "X-LanWatch-Timestamp"
	HeaderSignature = "X-LanWatch-Signature"
)

// APIHandler serves the REST API.
type APIHandler struct {
	devices      *service.DeviceService
	analytics    *service.AnalyticsService
	discovery    *discovery.SettingsStore
	connectors   *connector.SettingsStore
	registry     *connector.Registry
	fingerprints *connector.FingerprintStore
	vault        *secrets.Vault
	agents       *agent.TokenStore
	log          zerolog.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	devices *service.DeviceService,
	analytics *service.AnalyticsService,
	discoverySettings *discovery.SettingsStore,
	connectorSettings *connector.SettingsStore,
	registry *connector.Registry,
	fingerprints *connector.FingerprintStore,
	vault *secrets.Vault,
	agents *agent.TokenStore,
	log zerolog.Logger,
) *APIHandler {
	return &APIHandler{
		devices:      devices,
		analytics:    analytics,
		discovery:    discoverySettings,
		connectors:   connectorSettings,
		registry:     registry,
		fingerprints: fingerprints,
		vault:        vault,
		agents:       agents,
		log:          log.With().Str("component", "api").Logger(),
	}
}

// Routes registers all API endpoints on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/devices/{id}", h.GetDevice)
	mux.HandleFunc("GET /api/devices/{id}/events", h.ListDeviceEvents)
	mux.HandleFunc("GET /api/devices/{id}/observations", h.ListDeviceObservations)
	mux.HandleFunc("GET /api/devices/{id}/classification", h.ClassifyDevice)
	mux.HandleFunc("GET /api/devices/{id}/risk", h.AssessDevice)
	mux.HandleFunc("GET /api/devices/{id}/summary", h.DeviceSummary)

	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("GET /api/observations", h.ListObservations)
	mux.HandleFunc("POST /api/observations", h.SubmitObservation)

	mux.HandleFunc("GET /api/analytics/summary", h.NetworkSummary)

	mux.HandleFunc("GET /api/settings/discovery", h.GetDiscoverySettings)
	mux.HandleFunc("PUT /api/settings/discovery", h.UpdateDiscoverySettings)
	mux.HandleFunc("GET /api/settings/connectors", h.GetConnectorSettings)
	mux.HandleFunc("PUT /api/settings/connectors", h.UpdateConnectorSettings)

	mux.HandleFunc("GET /api/connectors/status", h.ConnectorStatus)
	mux.HandleFunc("GET /api/fingerprints", h.ListFingerprints)

	mux.HandleFunc("GET /api/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/credentials", h.CreateCredential)
	mux.HandleFunc("DELETE /api/credentials/{id}", h.DeleteCredential)

	mux.HandleFunc("GET /api/agents", h.ListAgentTokens)
	mux.HandleFunc("POST /api/agents", h.CreateAgentToken)
	mux.HandleFunc("DELETE /api/agents/{id}", h.DeleteAgentToken)
}

// ListDevices returns the full inventory.
func (h *APIHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		h.serverError(w, err, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	h.writeJSON(w, http.StatusOK, devices)
}

// GetDevice returns one device by ID.
func (h *APIHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.notFoundOrError(w, err, "failed to get device")
		return
	}
	h.writeJSON(w, http.StatusOK, device)
}

// ListDeviceEvents returns one device's presence timeline.
func (h *APIHandler) ListDeviceEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.devices.ListDeviceEvents(r.Context(), r.PathValue("id"), limitParam(r, 100))
	if err != nil {
		h.serverError(w, err, "failed to list device events")
		return
	}
	if events == nil {
		events = []domain.DeviceEvent{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

// ListDeviceObservations returns one device's raw observations.
func (h *APIHandler) ListDeviceObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := h.devices.ListDeviceObservations(r.Context(), r.PathValue("id"), limitParam(r, 100))
	if err != nil {
		h.serverError(w, err, "failed to list device observations")
		return
	}
	if obs == nil {
		obs = []domain.DeviceObservation{}
	}
	h.writeJSON(w, http.StatusOK, obs)
}

// ClassifyDevice re-runs classification over a device's history.
func (h *APIHandler) ClassifyDevice(w http.ResponseWriter, r *http.Request) {
	result, err := h.devices.ClassifyDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.notFoundOrError(w, err, "failed to classify device")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// AssessDevice returns a device's current risk assessment.
func (h *APIHandler) AssessDevice(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.devices.AssessDevice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.notFoundOrError(w, err, "failed to assess device")
		return
	}
	h.writeJSON(w, http.StatusOK, assessment)
}

// DeviceSummary returns uptime analytics for one device.
func (h *APIHandler) DeviceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.DeviceSummary(r.Context(), r.PathValue("id"), windowParam(r))
	if err != nil {
		h.notFoundOrError(w, err, "failed to summarize device")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// ListEvents returns recent presence events across all devices. An
// optional window query parameter (hours) restricts the range.
func (h *APIHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var events []domain.DeviceEvent
	var err error
	if r.URL.Query().Get("window") != "" {
		since := time.Now().UTC().Add(-time.Duration(windowParam(r) * float64(time.Hour)))
		events, err = h.devices.ListEventsSince(r.Context(), since, limitParam(r, 200))
	} else {
		events, err = h.devices.ListEvents(r.Context(), limitParam(r, 200))
	}
	if err != nil {
		h.serverError(w, err, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.DeviceEvent{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

// ListObservations returns recent observations across all devices.
func (h *APIHandler) ListObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := h.devices.ListObservations(r.Context(), limitParam(r, 200))
	if err != nil {
		h.serverError(w, err, "failed to list observations")
		return
	}
	if obs == nil {
		obs = []domain.DeviceObservation{}
	}
	h.writeJSON(w, http.StatusOK, obs)
}

// SubmitObservation accepts a signed observation from a remote agent.
func (h *APIHandler) SubmitObservation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.agents.Validate(
		r.Method,
		r.URL.Path,
		r.Header.Get(HeaderTimestamp),
		r.Header.Get(HeaderSignature),
		body,
	); err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejected agent submission")
		h.writeError(w, http.StatusUnauthorized, "invalid agent signature")
		return
	}

	var obs domain.Observation
	if err := json.Unmarshal(body, &obs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid observation payload")
		return
	}

	device, err := h.devices.Ingest(r.Context(), obs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, device)
}

// NetworkSummary returns network-wide analytics for a time window.
func (h *APIHandler) NetworkSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.NetworkSummary(r.Context(), windowParam(r))
	if err != nil {
		h.serverError(w, err, "failed to summarize network")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// GetDiscoverySettings returns the current scan configuration.
func (h *APIHandler) GetDiscoverySettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.discovery.Get())
}

// UpdateDiscoverySettings replaces the scan configuration.
func (h *APIHandler) UpdateDiscoverySettings(w http.ResponseWriter, r *http.Request) {
	var settings discovery.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	updated, err := h.discovery.Update(settings)
	if err != nil {
		h.serverError(w, err, "failed to save discovery settings")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// GetConnectorSettings returns the connector configuration.
func (h *APIHandler) GetConnectorSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.connectors.Get())
}

// UpdateConnectorSettings replaces the connector configuration.
func (h *APIHandler) UpdateConnectorSettings(w http.ResponseWriter, r *http.Request) {
	var settings connector.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	updated, err := h.connectors.Update(settings)
	if err != nil {
		h.serverError(w, err, "failed to save connector settings")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// ConnectorStatus returns last-run health for every connector.
func (h *APIHandler) ConnectorStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.Status())
}

// ListFingerprints returns the latest gateway fingerprints.
func (h *APIHandler) ListFingerprints(w http.ResponseWriter, r *http.Request) {
	fps := h.fingerprints.All()
	if fps == nil {
		fps = []domain.RouterFingerprint{}
	}
	h.writeJSON(w, http.StatusOK, fps)
}

// ListCredentials returns stored credential metadata, never values.
func (h *APIHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.vault.List()
	if err != nil {
		h.serverError(w, err, "failed to list credentials")
		return
	}
	if creds == nil {
		creds = []secrets.Credential{}
	}
	h.writeJSON(w, http.StatusOK, creds)
}

// CreateCredential stores a new secret in the vault.
func (h *APIHandler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Purpose string `json:"purpose"`
		Value   string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid credential payload")
		return
	}
	cred, err := h.vault.Create(req.Name, req.Purpose, req.Value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, cred)
}

// DeleteCredential removes a secret from the vault.
func (h *APIHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.Delete(r.PathValue("id")); err != nil {
		h.notFoundOrError(w, err, "failed to delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAgentTokens returns enrolled agents without their secrets.
func (h *APIHandler) ListAgentTokens(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.agents.List())
}

// CreateAgentToken enrolls a new agent. The secret appears only in this
// response.
func (h *APIHandler) CreateAgentToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid token payload")
		return
	}
	token, err := h.agents.Create(req.Name)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, token)
}

// DeleteAgentToken revokes an agent token.
func (h *APIHandler) DeleteAgentToken(w http.ResponseWriter, r *http.Request) {
	if err := h.agents.Delete(r.PathValue("id")); err != nil {
		h.notFoundOrError(w, err, "failed to delete agent token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *APIHandler) serverError(w http.ResponseWriter, err error, message string) {
	h.log.Error().Err(err).Msg(message)
	h.writeError(w, http.StatusInternalServerError, message)
}

func (h *APIHandler) notFoundOrError(w http.ResponseWriter, err error, message string) {
	if strings.Contains(err.Error(), "not found") {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.serverError(w, err, message)
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return def
	}
	return limit
}

func windowParam(r *http.Request) float64 {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return 24
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 24
	}
	return hours
}
