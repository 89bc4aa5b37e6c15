package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/http/response"
	"github.com/yungbote/winegraph/internal/platform/apierr"
	"github.com/yungbote/winegraph/internal/services"
)

type WineHandler struct {
	query services.QueryService
}

func NewWineHandler(query services.QueryService) *WineHandler {
	return &WineHandler{query: query}
}

// GET /v1/rest/search?terms=&max_price=
func (h *WineHandler) Search(c *gin.Context) {
	maxPrice, err := floatParam(c, "max_price")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	rows, err := h.query.SearchByKeywords(c.Request.Context(), c.Query("terms"), maxPrice, services.DefaultQueryLimit)
	respondRows(c, rows, err)
}

// GET /v1/rest/top_by_country?country=&limit=
func (h *WineHandler) TopByCountry(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	rows, err := h.query.TopByCountry(c.Request.Context(), c.Query("country"), limit)
	respondRows(c, rows, err)
}

// GET /v1/rest/top_by_province?province=&limit=
func (h *WineHandler) TopByProvince(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	rows, err := h.query.TopByProvince(c.Request.Context(), c.Query("province"), limit)
	respondRows(c, rows, err)
}

// GET /v1/rest/most_by_variety?country=&limit=
func (h *WineHandler) MostByVariety(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	rows, err := h.query.MostByVariety(c.Request.Context(), c.Query("country"), limit)
	respondRows(c, rows, err)
}

// GET /v1/rest/wines/:id
func (h *WineHandler) GetWine(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondErr(c, &domain.ConfigError{Field: "id", Reason: "must be an integer"})
		return
	}
	wine, err := h.query.GetWine(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, wine)
}

// respondRows turns an empty result into a 404.
func respondRows[T any](c *gin.Context, rows []T, err error) {
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if len(rows) == 0 {
		response.RespondErr(c, apierr.NotFound())
		return
	}
	response.RespondOK(c, rows)
}

func floatParam(c *gin.Context, name string) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, &domain.ConfigError{Field: name, Reason: "is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &domain.ConfigError{Field: name, Reason: "must be a number"}
	}
	return v, nil
}

// limitParam returns 0 (the service default) when the parameter is absent.
func limitParam(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v == 0 {
		return 0, &domain.ConfigError{Field: "limit", Reason: "must be a positive integer"}
	}
	return v, nil
}
