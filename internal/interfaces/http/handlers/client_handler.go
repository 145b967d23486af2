package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/manorfm/oauth2server/internal/domain"
	"github.com/manorfm/oauth2server/internal/interfaces/http/dto"
	httperrors "github.com/manorfm/oauth2server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// ClientHandler manages client registrations
type ClientHandler struct {
	clients  domain.ClientRepository
	admin    domain.ClientAdminRepository
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients domain.ClientRepository, admin domain.ClientAdminRepository, logger *zap.Logger) *ClientHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return jsonFieldName(field.Tag.Get("json"))
	})
	return &ClientHandler{
		clients:  clients,
		admin:    admin,
		validate: validate,
		now:      time.Now,
		logger:   logger,
	}
}

// CreateClientHandler registers a new client
func (h *ClientHandler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateClientRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request body", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid request body", nil, http.StatusBadRequest)
		return
	}

	if verrs := h.validateClientRequest(req); verrs.HasErrors() {
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", verrs.ToErrorDetails(), http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		req.ID = domain.NewID()
	} else {
		_, err := h.clients.GetByIdentifier(r.Context(), req.ID)
		switch {
		case err == nil:
			httperrors.RespondWithError(w, httperrors.ErrCodeConflict, "Client already exists", nil, http.StatusConflict)
			return
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.Error("Failed to look up client", zap.String("client_id", req.ID), zap.Error(err))
			httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
			return
		}
	}

	client := req.ToDomain(h.now())
	if err := h.admin.CreateClient(r.Context(), client); err != nil {
		h.logger.Error("Failed to create client", zap.String("client_id", client.ID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client registered",
		zap.String("client_id", client.ID),
		zap.Bool("confidential", client.IsConfidential()))
	writeJSON(w, http.StatusCreated, dto.NewClientResponse(client), h.logger)
}

// ListClientsHandler lists every registered client
func (h *ClientHandler) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := h.admin.ListClients(r.Context())
	if err != nil {
		h.logger.Error("Failed to list clients", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
		return
	}

	out := make([]dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, dto.NewClientResponse(c))
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

// GetClientHandler returns one client
func (h *ClientHandler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	client, err := h.clients.GetByIdentifier(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get client", zap.String("client_id", id), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewClientResponse(client), h.logger)
}

// DeleteClientHandler removes a client
func (h *ClientHandler) DeleteClientHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.admin.DeleteClient(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete client", zap.String("client_id", id), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client deleted", zap.String("client_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandler) validateClientRequest(req dto.CreateClientRequest) httperrors.ValidationErrors {
	var verrs httperrors.ValidationErrors

	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verrs.Add("body", err.Error())
			return verrs
		}
		for _, fe := range fieldErrs {
			verrs.Add(fe.Field(), describeRule(fe.Tag(), fe.Param()))
		}
	}

	// redirecting grants need somewhere to send the resource owner back
	for _, g := range req.Grants {
		id := domain.GrantIdentifier(g)
		if (id == domain.GrantAuthorizationCode || id == domain.GrantImplicit) && len(req.RedirectURIs) == 0 {
			verrs.Add("redirect_uris", "is required for "+g)
			break
		}
	}
	if req.Secret == "" {
		for _, g := range req.Grants {
			if domain.GrantIdentifier(g) == domain.GrantClientCredentials {
				verrs.Add("secret", "is required for client_credentials")
				break
			}
		}
	}
	return verrs
}
