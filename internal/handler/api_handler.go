// Package handler provides the HTTP surface for PackVault. The handlers
// are deliberately thin: decode, call a service, encode. All domain
// decisions live in internal/service.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/manifest"
	"github.com/prn-tf/packvault/internal/repository"
	"github.com/prn-tf/packvault/internal/service"
)

// actorHeader carries the identity of the publishing actor. Verifying it
// is the front proxy's job; the permission predicate decides what the
// actor may do.
const actorHeader = "X-Packvault-Actor"

// APIHandler handles PackVault API requests.
type APIHandler struct {
	registry       *service.RegistryService
	uploads        *service.UploadService
	reconstructs   *service.ReconstructService
	manifests      *manifest.Tracker
	maxArchiveSize int64
	logger         zerolog.Logger
}

// APIConfig contains configuration for the API handler.
type APIConfig struct {
	Registry       *service.RegistryService
	Uploads        *service.UploadService
	Reconstructs   *service.ReconstructService
	Manifests      *manifest.Tracker
	MaxArchiveSize int64
	Logger         zerolog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(cfg APIConfig) *APIHandler {
	return &APIHandler{
		registry:       cfg.Registry,
		uploads:        cfg.Uploads,
		reconstructs:   cfg.Reconstructs,
		manifests:      cfg.Manifests,
		maxArchiveSize: cfg.MaxArchiveSize,
		logger:         cfg.Logger.With().Str("handler", "api").Logger(),
	}
}

// RegisterRoutes registers API routes.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/packages", func(r chi.Router) {
		r.Post("/", h.handleCreatePackage)
		r.Get("/", h.handleListPackages)
		r.Get("/{packageID}", h.handleGetPackage)

		r.Route("/{packageID}/versions", func(r chi.Router) {
			r.Post("/", h.handleCreateVersion)
			r.Get("/", h.handleListVersions)
			r.Get("/{versionID}/manifest", h.handleGetManifest)
			r.Post("/{versionID}/files/{category}", h.handleUpload)
		})

		r.Get("/{packageID}/files/{versionFileID}/archive", h.handleReconstruct)
	})
}

// =============================================================================
// Registry Handlers
// =============================================================================

type createPackageRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *APIHandler) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	pkg, err := h.registry.CreatePackage(r.Context(), service.CreatePackageInput{
		ID:      req.ID,
		Name:    req.Name,
		OwnerID: r.Header.Get(actorHeader),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (h *APIHandler) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.registry.ListPackages(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (h *APIHandler) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.registry.GetPackage(r.Context(), chi.URLParam(r, "packageID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

type createVersionRequest struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Minecraft string `json:"minecraft"`
	Loader    string `json:"loader"`
}

func (h *APIHandler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	version, err := h.registry.CreateVersion(r.Context(), service.CreateVersionInput{
		ID:        req.ID,
		PackageID: chi.URLParam(r, "packageID"),
		Label:     req.Label,
		Minecraft: req.Minecraft,
		Loader:    req.Loader,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (h *APIHandler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.ListVersions(r.Context(), chi.URLParam(r, "packageID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// =============================================================================
// Archive Handlers
// =============================================================================

func (h *APIHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	input := service.UploadInput{
		ActorID:            r.Header.Get(actorHeader),
		PackageID:          chi.URLParam(r, "packageID"),
		VersionID:          chi.URLParam(r, "versionID"),
		Category:           domain.Category(chi.URLParam(r, "category")),
		ReuseFromVersionID: r.URL.Query().Get("reuse_from"),
	}

	if input.ReuseFromVersionID == "" {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxArchiveSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "archive_too_large", "archive exceeds the size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to read archive body")
			return
		}
		input.Data = data
	}

	output, err := h.uploads.Upload(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"versionFileId": output.VersionFileID,
		"isDelta":       output.IsDelta,
		"fileCount":     output.FileCount,
		"totalSize":     output.TotalSize,
		"addedFiles":    output.AddedFiles,
		"removedFiles":  output.RemovedFiles,
		"modifiedFiles": output.ModifiedFiles,
	})
}

func (h *APIHandler) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	versionFileID, err := uuid.Parse(chi.URLParam(r, "versionFileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "version file id must be a UUID")
		return
	}

	data, err := h.reconstructs.Reconstruct(r.Context(), chi.URLParam(r, "packageID"), versionFileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *APIHandler) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.manifests.Load(r.Context(), chi.URLParam(r, "packageID"), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// =============================================================================
// Error Mapping
// =============================================================================

// errorResponse is the JSON shape of every error reply.
type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Paths   []string `json:"paths,omitempty"`
}

func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var reconstructErr *domain.ReconstructError
	if errors.As(err, &reconstructErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:    "unrecoverable_paths",
			Message: "some files could not be recovered from storage",
			Paths:   reconstructErr.MissingPaths,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrMalformedArchive),
		errors.Is(err, domain.ErrDigestCollision):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, domain.ErrPackageNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrVersionFileNotFound),
		errors.Is(err, domain.ErrManifestNotFound),
		errors.Is(err, domain.ErrBlobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrReuseNotAllowed),
		errors.Is(err, domain.ErrReuseSourceMissing),
		errors.Is(err, domain.ErrNoPriorVersion),
		errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
