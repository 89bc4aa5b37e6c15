package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/data/repos/runs"
	"github.com/yungbote/winegraph/internal/data/repos/testutil"
	"github.com/yungbote/winegraph/internal/domain"
)

func TestRunHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	first := testutil.SeedRun(t, ctx, db, domain.RunStatusSucceeded, now.Add(-2*time.Hour))
	second := testutil.SeedRun(t, ctx, db, domain.RunStatusPartial, now.Add(-time.Hour))

	h := NewRunHandler(runs.NewIngestionRunRepo(db, testutil.Logger(t)))
	r := gin.New()
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)

	rec := get(r, "/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []domain.IngestionRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 2)
	assert.Equal(t, second.ID, list.Runs[0].ID)
	assert.Equal(t, first.ID, list.Runs[1].ID)

	rec = get(r, "/runs?status="+domain.RunStatusPartial)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, second.ID, list.Runs[0].ID)

	assert.Equal(t, http.StatusOK, get(r, "/runs/"+first.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/runs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/runs/not-a-uuid").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/runs?limit=x").Code)
}
