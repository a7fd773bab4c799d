package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"melhor-casa/models"
	"melhor-casa/scraper"
	"melhor-casa/services"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

// maxBodyBytes bounds request bodies; user documents carry whole collections.
const maxBodyBytes = 32 << 20

// ScraperControl is the external scraper process as seen by the API.
type ScraperControl interface {
	Start() (models.ScrapeStatus, error)
	Stop() (models.ScrapeStatus, error)
	Status() models.ScrapeStatus
	Import() ([]models.Property, error)
}

// UserRepository persists one document per user.
type UserRepository interface {
	Load(userID string) (*models.UserData, error)
	Save(userID string, data *models.UserData) error
	AddLiked(userID string, p models.Property) (*models.UserData, error)
	AddDisliked(userID string, p models.Property) (*models.UserData, error)
	AddCofrinho(userID string, p models.Property) (*models.UserData, error)
}

// Handler serves every API route.
type Handler struct {
	scraper ScraperControl
	users   UserRepository
	parser  *services.Parser
	logger  *utils.Logger
}

// NewHandler wires the scraper and user store into the route handlers.
func NewHandler(sc ScraperControl, users UserRepository, logger *utils.Logger) *Handler {
	return &Handler{
		scraper: sc,
		users:   users,
		parser:  services.NewParser(logger),
		logger:  logger,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// StartScraper handles POST /api/scraper/start.
func (h *Handler) StartScraper(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), h.logger)

	status, err := h.scraper.Start()
	switch {
	case errors.Is(err, scraper.ErrAlreadyRunning):
		writeJSONError(w, http.StatusBadRequest, "Scraping already in progress")
		return
	case err != nil:
		logger.Error("[api] Start scraper: %v", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Erro ao iniciar scraping",
			"details": status.Error,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"message": "Scraping iniciado", "status": status})
}

// StopScraper handles POST /api/scraper/stop.
func (h *Handler) StopScraper(w http.ResponseWriter, r *http.Request) {
	status, err := h.scraper.Stop()
	if err != nil {
		if !errors.Is(err, scraper.ErrNotRunning) {
			loggerFrom(r.Context(), h.logger).Error("[api] Stop scraper: %v", err)
		}
		writeJSONError(w, http.StatusBadRequest, "Nenhum processo de scraping ativo")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"message": "Scraping interrompido", "status": status})
}

// ScraperStatus handles GET /api/scraper/status.
func (h *Handler) ScraperStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.scraper.Status())
}

// ImportScraped handles POST /api/scraper/import.
func (h *Handler) ImportScraped(w http.ResponseWriter, r *http.Request) {
	props, err := h.scraper.Import()
	switch {
	case errors.Is(err, scraper.ErrOutputMissing):
		writeJSONError(w, http.StatusNotFound, "Arquivo de dados não encontrado")
		return
	case err != nil:
		loggerFrom(r.Context(), h.logger).Error("[api] Import scraped data: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Erro ao importar dados do scraping")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("%d imóveis importados do scraping", len(props)),
		"properties": props,
		"count":      len(props),
	})
}

// GetUserData handles GET /api/user/{userId}/data.
func (h *Handler) GetUserData(w http.ResponseWriter, r *http.Request) {
	data, err := h.users.Load(chi.URLParam(r, "userId"))
	if err != nil {
		h.userError(w, r, err, "Erro ao carregar dados do usuário")
		return
	}
	respondWithJSON(w, http.StatusOK, data)
}

// SaveUserData handles POST /api/user/{userId}/data. Missing lists are
// stored empty.
func (h *Handler) SaveUserData(w http.ResponseWriter, r *http.Request) {
	var body models.UserData
	if err := decodeBody(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	data := models.NewUserData()
	if body.LikedProperties != nil {
		data.LikedProperties = body.LikedProperties
	}
	if body.DislikedProperties != nil {
		data.DislikedProperties = body.DislikedProperties
	}
	if body.Cofrinho != nil {
		data.Cofrinho = body.Cofrinho
	}

	if err := h.users.Save(chi.URLParam(r, "userId"), data); err != nil {
		h.userError(w, r, err, "Erro ao salvar dados do usuário")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":    "Dados salvos com sucesso",
		"lastUpdate": data.LastUpdate.Format(time.RFC3339Nano),
	})
}

type propertyRequest struct {
	Property *models.Property `json:"property"`
}

func (h *Handler) upsertProperty(add func(string, models.Property) (*models.UserData, error), message, failure string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body propertyRequest
		if err := decodeBody(w, r, &body); err != nil || body.Property == nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if body.Property.ID == "" {
			writeJSONError(w, http.StatusBadRequest, "Property id is required")
			return
		}

		data, err := add(chi.URLParam(r, "userId"), *body.Property)
		if err != nil {
			h.userError(w, r, err, failure)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]any{"message": message, "userData": data})
	}
}

// AddLiked handles POST /api/user/{userId}/liked.
func (h *Handler) AddLiked(w http.ResponseWriter, r *http.Request) {
	h.upsertProperty(h.users.AddLiked, "Propriedade curtida salva", "Erro ao salvar propriedade curtida")(w, r)
}

// AddDisliked handles POST /api/user/{userId}/disliked.
func (h *Handler) AddDisliked(w http.ResponseWriter, r *http.Request) {
	h.upsertProperty(h.users.AddDisliked, "Propriedade rejeitada salva", "Erro ao salvar propriedade rejeitada")(w, r)
}

// AddCofrinho handles POST /api/user/{userId}/cofrinho.
func (h *Handler) AddCofrinho(w http.ResponseWriter, r *http.Request) {
	h.upsertProperty(h.users.AddCofrinho, "Propriedade adicionada ao cofrinho", "Erro ao salvar no cofrinho")(w, r)
}

func (h *Handler) userError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, storage.ErrInvalidUserID) {
		writeJSONError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	loggerFrom(r.Context(), h.logger).Error("[api] %s: %v", message, err)
	writeJSONError(w, http.StatusInternalServerError, message)
}

type filterRequest struct {
	Properties []models.Property    `json:"properties"`
	Filters    models.Filters       `json:"filters"`
	ShowAll    bool                 `json:"showAll"`
	Sort       models.SortOption    `json:"sort"`
	Location   *models.UserLocation `json:"location"`
}

type filterResponse struct {
	Properties []models.Property    `json:"properties"`
	Count      int                  `json:"count"`
	Stats      services.FilterStats `json:"stats"`
}

// FilterProperties handles POST /api/properties/filter: the posted
// collection is deduplicated, enhanced, filtered and sorted the same way the
// working set is rendered. Omitted filters and sort take their defaults.
func (h *Handler) FilterProperties(w http.ResponseWriter, r *http.Request) {
	body := filterRequest{Filters: models.DefaultFilters(), Sort: models.DefaultSort()}
	if err := decodeBody(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !body.Sort.Valid() {
		writeJSONError(w, http.StatusBadRequest, "Invalid sort option")
		return
	}
	if body.Filters.Tags == nil {
		body.Filters.Tags = []string{}
	}

	logger := loggerFrom(r.Context(), h.logger)
	enhancer := services.NewEnhancer(h.parser, body.Location)
	engine := services.NewFilterEngine(logger, enhancer, body.Location != nil)

	props := enhancer.EnhanceAll(services.Deduplicate(body.Properties))
	kept, stats := engine.ApplyWithStats(props, body.Filters, body.ShowAll)
	kept = services.SortProperties(kept, body.Sort)
	if kept == nil {
		kept = []models.Property{}
	}

	respondWithJSON(w, http.StatusOK, filterResponse{Properties: kept, Count: len(kept), Stats: stats})
}
