package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/winegraph/internal/data/repos/runs"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

type Repos struct {
	Runs runs.IngestionRunRepo
}

// wireRepos leaves Runs nil when no run store is configured.
func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	if db == nil {
		return Repos{}
	}
	log.Info("Wiring repos...")
	return Repos{
		Runs: runs.NewIngestionRunRepo(db, log),
	}
}
