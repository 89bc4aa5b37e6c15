package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/winegraph/internal/data/repos/runs"
	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/http/response"
	"github.com/yungbote/winegraph/internal/pkg/dbctx"
)

const defaultRunsWindow = 7 * 24 * time.Hour

type RunHandler struct {
	runs runs.IngestionRunRepo
}

func NewRunHandler(repo runs.IngestionRunRepo) *RunHandler {
	return &RunHandler{runs: repo}
}

// GET /v1/rest/ingestion/runs?limit=&status=
func (h *RunHandler) ListRuns(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		out, err := h.runs.ListByStatus(dbc, status, time.Now().Add(-defaultRunsWindow))
		if err != nil {
			respondRunErr(c, err)
			return
		}
		response.RespondOK(c, gin.H{"runs": out})
		return
	}
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondErr(c, &domain.ConfigError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = v
	}
	out, err := h.runs.ListRecent(dbc, limit)
	if err != nil {
		respondRunErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": out})
}

// GET /v1/rest/ingestion/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", errors.New("run id must be a uuid"))
		return
	}
	run, err := h.runs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondRunErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

func respondRunErr(c *gin.Context, err error) {
	if errors.Is(err, runs.ErrRetryable) {
		_ = c.Error(err)
		response.RespondError(c, http.StatusServiceUnavailable, "run_store_unavailable", errors.New("run store unavailable, try again"))
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "run_not_found", errors.New("run not found"))
		return
	}
	response.RespondErr(c, err)
}
