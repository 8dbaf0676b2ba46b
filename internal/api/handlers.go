package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/leadstream/leadstream/internal/database"
	"github.com/leadstream/leadstream/internal/ingestion"
	"github.com/leadstream/leadstream/internal/models"
	"github.com/leadstream/leadstream/internal/sources"
)

// CatalogStore is the catalog access the API needs.
type CatalogStore interface {
	List(ctx context.Context) ([]models.ConnectorSource, error)
	SetStatus(ctx context.Context, key string, status models.SourceStatus) error
}

// ConnectorStore is the connector access the API needs.
type ConnectorStore interface {
	Create(ctx context.Context, connector *models.UnifiedConnector) error
	GetByID(ctx context.Context, id string) (*models.UnifiedConnector, error)
	ListByProject(ctx context.Context, projectID string) ([]models.UnifiedConnector, error)
	Delete(ctx context.Context, id string) error
	ListSources(ctx context.Context, connectorID string) ([]models.UnifiedConnectorSource, error)
	GetSource(ctx context.Context, sourceID string) (*models.UnifiedConnectorSource, error)
}

// LeadStore is the discovered-lead access the API needs.
type LeadStore interface {
	ListSourceLeads(ctx context.Context, sourceID string, filter database.SourceLeadFilter) ([]models.SourceLead, error)
	SetBlocked(ctx context.Context, sourceID, leadID string, blocked bool) error
	Promote(ctx context.Context, sourceID, leadID, projectID string) (*models.Lead, error)
}

// Trigger accepts fire-and-forget sync requests.
type Trigger interface {
	Enqueue(connectorID string) error
}

// Handler bundles the HTTP handlers for the connector API.
type Handler struct {
	catalog    CatalogStore
	connectors ConnectorStore
	leads      LeadStore
	trigger    Trigger
	registry   *sources.Registry
	dbCheck    func(ctx context.Context) error
	logger     *slog.Logger
}

// NewHandler creates the API handler set. dbCheck may be nil when no
// database health probe is available.
func NewHandler(
	catalog CatalogStore,
	connectors ConnectorStore,
	leads LeadStore,
	trigger Trigger,
	registry *sources.Registry,
	dbCheck func(ctx context.Context) error,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:    catalog,
		connectors: connectors,
		leads:      leads,
		trigger:    trigger,
		registry:   registry,
		dbCheck:    dbCheck,
		logger:     logger,
	}
}

// HealthCheck reports liveness plus database reachability.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dbStatus := "ok"
	status := http.StatusOK
	if h.dbCheck != nil {
		if err := h.dbCheck(r.Context()); err != nil {
			h.logger.Error("database health check failed", "error", err)
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, map[string]any{
		"status":   "ok",
		"database": dbStatus,
	})
}

// ListCatalogSources returns the source catalog with operational status.
func (h *Handler) ListCatalogSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list catalog", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": entries})
}

// CatalogSubtree dispatches /api/sources/{key}/status.
func (h *Handler) CatalogSubtree(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api / sources / {key} / status
	if len(parts) == 4 && parts[3] == "status" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.setCatalogStatus(w, r, parts[2])
		return
	}

	http.Error(w, "Not found", http.StatusNotFound)
}

func (h *Handler) setCatalogStatus(w http.ResponseWriter, r *http.Request, key string) {
	var req struct {
		Status models.SourceStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != models.SourceStatusWorking && req.Status != models.SourceStatusBroken {
		http.Error(w, "status must be 'working' or 'broken'", http.StatusBadRequest)
		return
	}

	if err := h.catalog.SetStatus(r.Context(), key, req.Status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to set catalog status", "key", key, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("catalog status updated", "key", key, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "status": req.Status})
}

// Connectors handles the /api/connectors collection: list by project and
// create.
func (h *Handler) Connectors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listConnectors(w, r)
	case http.MethodPost:
		h.createConnector(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listConnectors(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "project_id query parameter is required", http.StatusBadRequest)
		return
	}

	connectors, err := h.connectors.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list connectors", "project_id", projectID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"connectors": connectors})
}

type createConnectorRequest struct {
	Title     string `json:"title"`
	ProjectID string `json:"project_id"`
	IsActive  *bool  `json:"is_active"`
	Sources   []struct {
		SourceKey string              `json:"source_key"`
		Params    models.SourceParams `json:"params"`
	} `json:"sources"`
}

func (h *Handler) createConnector(w http.ResponseWriter, r *http.Request) {
	var req createConnectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.ProjectID == "" {
		http.Error(w, "title and project_id are required", http.StatusBadRequest)
		return
	}

	connector := &models.UnifiedConnector{
		Title:     req.Title,
		ProjectID: req.ProjectID,
		IsActive:  true,
	}
	if req.IsActive != nil {
		connector.IsActive = *req.IsActive
	}

	for _, src := range req.Sources {
		if _, err := h.registry.Resolve(src.SourceKey); err != nil {
			http.Error(w, "unknown source key: "+src.SourceKey, http.StatusBadRequest)
			return
		}
		connector.Sources = append(connector.Sources, models.UnifiedConnectorSource{
			SourceKey: src.SourceKey,
			Params:    src.Params,
		})
	}

	if err := h.connectors.Create(r.Context(), connector); err != nil {
		h.logger.Error("failed to create connector", "title", req.Title, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("connector created", "connector_id", connector.ID, "project_id", connector.ProjectID, "sources", len(connector.Sources))
	writeJSON(w, http.StatusCreated, connector)
}

// ConnectorSubtree dispatches everything under /api/connectors/{id}.
func (h *Handler) ConnectorSubtree(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// parts[0] = "api", parts[1] = "connectors", parts[2] = {id}
	if len(parts) < 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	connectorID := parts[2]

	switch {
	case len(parts) == 3:
		switch r.Method {
		case http.MethodGet:
			h.getConnector(w, r, connectorID)
		case http.MethodDelete:
			h.deleteConnector(w, r, connectorID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 4 && parts[3] == "trigger-sync":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.triggerSync(w, r, connectorID)

	case len(parts) == 4 && parts[3] == "sources":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.listConnectorSources(w, r, connectorID)

	case len(parts) == 6 && parts[3] == "sources" && parts[5] == "leads":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.listSourceLeads(w, r, parts[4])

	case len(parts) == 8 && parts[3] == "sources" && parts[5] == "leads":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.sourceLeadAction(w, r, connectorID, parts[4], parts[6], parts[7])

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) getConnector(w http.ResponseWriter, r *http.Request, id string) {
	connector, err := h.connectors.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get connector", "connector_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if connector == nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, connector)
}

func (h *Handler) deleteConnector(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.connectors.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "Connector not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete connector", "connector_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("connector deleted", "connector_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// triggerSync enqueues a sync and returns before any fetching happens.
// Progress is observed through source status and lead listings.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request, id string) {
	connector, err := h.connectors.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get connector", "connector_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if connector == nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	if err := h.trigger.Enqueue(id); err != nil {
		if errors.Is(err, ingestion.ErrQueueFull) {
			http.Error(w, "Sync queue is full, retry later", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to enqueue sync", "connector_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sync queued", "connector_id", id)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

func (h *Handler) listConnectorSources(w http.ResponseWriter, r *http.Request, connectorID string) {
	connector, err := h.connectors.GetByID(r.Context(), connectorID)
	if err != nil {
		h.logger.Error("failed to get connector", "connector_id", connectorID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if connector == nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": connector.Sources})
}

func (h *Handler) listSourceLeads(w http.ResponseWriter, r *http.Request, sourceID string) {
	source, err := h.connectors.GetSource(r.Context(), sourceID)
	if err != nil {
		h.logger.Error("failed to get connector source", "source_id", sourceID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if source == nil {
		http.Error(w, "Source not found", http.StatusNotFound)
		return
	}

	var filter database.SourceLeadFilter
	query := r.URL.Query()
	if v := query.Get("blocked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "blocked must be true or false", http.StatusBadRequest)
			return
		}
		filter.Blocked = &b
	}
	if v := query.Get("already_added"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "already_added must be true or false", http.StatusBadRequest)
			return
		}
		filter.AlreadyAdded = &b
	}

	leads, err := h.leads.ListSourceLeads(r.Context(), sourceID, filter)
	if err != nil {
		h.logger.Error("failed to list source leads", "source_id", sourceID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (h *Handler) sourceLeadAction(w http.ResponseWriter, r *http.Request, connectorID, sourceID, leadID, action string) {
	switch action {
	case "block":
		h.setLeadBlocked(w, r, sourceID, leadID, true)
	case "unblock":
		h.setLeadBlocked(w, r, sourceID, leadID, false)
	case "add":
		h.promoteLead(w, r, connectorID, sourceID, leadID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) setLeadBlocked(w http.ResponseWriter, r *http.Request, sourceID, leadID string, blocked bool) {
	if err := h.leads.SetBlocked(r.Context(), sourceID, leadID, blocked); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "Lead not found for source", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update lead block state", "source_id", sourceID, "lead_id", leadID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": sourceID,
		"lead_id":   leadID,
		"blocked":   blocked,
	})
}

// promoteLead creates a platform lead from a discovered connector lead and
// marks the association already-added.
func (h *Handler) promoteLead(w http.ResponseWriter, r *http.Request, connectorID, sourceID, leadID string) {
	connector, err := h.connectors.GetByID(r.Context(), connectorID)
	if err != nil {
		h.logger.Error("failed to get connector", "connector_id", connectorID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if connector == nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	lead, err := h.leads.Promote(r.Context(), sourceID, leadID, connector.ProjectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "Lead not found for source", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to promote lead", "source_id", sourceID, "lead_id", leadID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead promoted", "lead_id", leadID, "project_id", connector.ProjectID)
	writeJSON(w, http.StatusCreated, lead)
}

// DBHealthCheck adapts a sql.DB ping into the handler's health probe shape.
func DBHealthCheck(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return database.HealthCheck(ctx, db)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
