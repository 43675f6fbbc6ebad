package di

import (
	"context"
	"fmt"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/customers"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/aristath/cardrisk/internal/modules/panel"
	"github.com/aristath/cardrisk/internal/modules/risk"
	"github.com/aristath/cardrisk/internal/modules/snapshots"
	"github.com/aristath/cardrisk/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.CustomersDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.CustomerRepo = customers.NewRepository(container.CustomersDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.CacheDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates the event bus, risk policy and domain services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	policy, err := config.LoadRiskPolicy(cfg.RiskPolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load risk policy: %w", err)
	}
	container.PolicyStore = config.NewPolicyStore(policy)
	if cfg.RiskPolicyFile != "" {
		emitter := container.EventManager
		container.PolicyWatcher = config.NewPolicyWatcher(cfg.RiskPolicyFile, container.PolicyStore, func(p config.RiskPolicy) {
			emitter.EmitTyped("config", &events.PolicyChangedData{
				Bands:   p.Scheme.Names(),
				Flagged: p.Flagged.Names(),
			})
		}, log)
	}

	drilldownFlagged := func() domain.BandSet {
		return container.PolicyStore.Get().DrilldownFlagged
	}

	container.CustomerService = customers.NewService(container.CustomerRepo, container.EventManager, drilldownFlagged, log)
	container.RiskService = risk.NewService(container.CustomerService, container.PolicyStore, log)
	container.SnapshotService = snapshots.NewService(
		container.RiskService,
		container.CustomerService,
		container.SnapshotRepo,
		container.EventManager,
		snapshots.DefaultRetention,
		log,
	)

	// The panel reads through the admin backend when one is configured,
	// otherwise straight from the local store.
	if cfg.BackendURL != "" {
		container.Fetcher = drilldown.NewHTTPClient(cfg.BackendURL, cfg.DrilldownLimit, log)
		log.Info().Str("backend", cfg.BackendURL).Msg("Drill-down fetches go to remote backend")
	} else {
		container.Fetcher = drilldown.NewLocalFetcher(container.CustomerRepo, drilldownFlagged, cfg.DrilldownLimit)
	}

	container.PanelManager = panel.NewManager(container.Fetcher, panel.Options{
		FetchTimeout: cfg.DrilldownTimeout,
		Events:       container.EventManager,
		Log:          log,
	})

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			store,
			cfg.DataDir,
			container.EventManager,
			log,
			container.CustomersDB,
			container.CacheDB,
		)
	} else {
		log.Info().Msg("Backups disabled (BACKUP_BUCKET not set)")
	}

	log.Info().Msg("Services initialized")
	return nil
}
