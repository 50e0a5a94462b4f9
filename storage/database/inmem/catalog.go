package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) GetProgram(_ context.Context, programUUID uuid.UUID, _ ...core.DBExecutor) (catalog.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.programs[programUUID]; ok {
		return p, nil
	}
	return catalog.Program{}, catalog.ErrProgramNotFound
}

func (repo *catalogRepository) UpsertProgram(_ context.Context, program catalog.Program, _ ...core.DBExecutor) (catalog.Program, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	program.CourseKeys = append([]string(nil), program.CourseKeys...)
	repo.db.programs[program.UUID] = program
	return program, nil
}
