package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// customers.db - Customer collection and simulated transactions
	customersDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "customers.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameCustomers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize customers database: %w", err)
	}
	container.CustomersDB = customersDB

	// cache.db - KPI snapshot history, regenerable
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    database.NameCache,
	})
	if err != nil {
		customersDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{customersDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			customersDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
