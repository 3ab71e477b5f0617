package main

import (
	"context"
	"fmt"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/cache"
	"power-observer/src/classifier"
	"power-observer/src/config"
	"power-observer/src/fetcher"
	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/network"
	"power-observer/src/storage"
	"power-observer/src/utils"
)

// application holds the wired components.
type application struct {
	Store      interfaces.IReadingStore
	Cache      *cache.TimeWindowCache
	Fetcher    *fetcher.RangeFetcher
	Assembler  *analysis.DashboardAssembler
	Classifier *classifier.AnomalyClassifier
	Location   *time.Location
}

// -----------------------------------------------------------------------------

// setupStore opens the reading store selected by storage.db_type.
func setupStore(cfg *config.Config, loc *time.Location, appLogger *logger.Logger) (interfaces.IReadingStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		pg := storage.NewPostgresReadingStore(cfg.Storage.DBConnectionString, cfg.Name, loc, appLogger.Named("PostgresStore"))
		if err := pg.Initialize(); err != nil {
			return nil, helpers.NewDatabaseError("failed to initialize postgres store", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if nodes, err := pg.ResolveAndRegisterNodes(ctx, cfg.Fetch.FallbackNodes); err != nil {
			appLogger.Warning("Node registration failed: %v", err)
		} else {
			appLogger.Info("Registered %d nodes in the postgres registry", len(nodes))
		}
		return pg, nil

	case "http":
		nm := network.NewAsyncNetworkManager(cfg.Network, appLogger.Named("NetworkManager"))
		return storage.NewHierarchicalHTTPStore(cfg.Storage.BaseURL, cfg.Storage.AuthToken, nm), nil

	default:
		lite := storage.NewSQLiteReadingStore(cfg.Storage.DBPath, loc, appLogger.Named("SQLiteStore"))
		if err := lite.Initialize(); err != nil {
			return nil, helpers.NewDatabaseError("failed to initialize sqlite store", err)
		}
		return lite, nil
	}
}

// -----------------------------------------------------------------------------

// setupStrategy prefers the store's date index and falls back to probing
// recent days plus the configured anchors.
func setupStrategy(cfg *config.Config, store interfaces.IReadingStore, cal *utils.DayCalendar, loc *time.Location, appLogger *logger.Logger) (interfaces.IDateCandidateStrategy, error) {
	anchors := make([]time.Time, 0, len(cfg.Fetch.AnchorDates))
	for _, a := range cfg.Fetch.AnchorDates {
		d, err := utils.ParseDate("anchor_dates", a, loc)
		if err != nil {
			return nil, helpers.NewConfigurationError("invalid anchor date", err)
		}
		anchors = append(anchors, d)
	}

	recent := &fetcher.RecentDaysStrategy{
		LookbackDays: cfg.Fetch.LookbackDays,
		Anchors:      anchors,
		WeekdaysOnly: cfg.Fetch.WeekdaysOnly,
		Calendar:     cal,
		Location:     loc,
	}
	if index, ok := store.(interfaces.IDateIndex); ok {
		return &fetcher.IndexedDateStrategy{
			Index:    index,
			Fallback: recent,
			Logger:   appLogger.Named("DateIndex"),
		}, nil
	}
	return recent, nil
}

// -----------------------------------------------------------------------------

// setupClassifier loads the model when one is configured. Without a model
// anomalies are labelled Unknown and explanations are unavailable.
func setupClassifier(cfg *config.Config, appLogger *logger.Logger) (*classifier.AnomalyClassifier, error) {
	log := appLogger.Named("Classifier")
	if cfg.Classifier.ModelPath == "" {
		log.Warning("No classifier model configured")
		return classifier.NewAnomalyClassifier(nil, log), nil
	}

	model, err := classifier.LoadLinearModel(cfg.Classifier.ModelPath)
	if err != nil {
		return nil, helpers.NewClassificationError("failed to load classifier model", err)
	}
	log.Info("Loaded classifier model from %s (%d classes)", cfg.Classifier.ModelPath, len(model.Classes))
	return classifier.NewAnomalyClassifier(model, log), nil
}

// -----------------------------------------------------------------------------

// setup wires store, cache, fetcher, analysis and classifier.
func setup(cfg *config.Config, appLogger *logger.Logger) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := setupStore(cfg, loc, appLogger)
	if err != nil {
		return nil, err
	}

	maxMB := cfg.Cache.MaxMemoryMB
	if maxMB == 0 {
		maxMB = helpers.GetRecommendedMemoryLimit()
	}
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	readingCache := cache.NewTimeWindowCache(ttl, maxMB, appLogger.Named("Cache"))

	cal := utils.NewDayCalendar(cfg.Analysis.Calendar)
	strategy, err := setupStrategy(cfg, store, cal, loc, appLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	rangeFetcher := fetcher.NewRangeFetcher(store, readingCache, strategy, cfg.Fetch, ttl, loc, appLogger.Named("Fetcher"))
	appLogger.Info("%s", rangeFetcher)

	assembler := analysis.NewDashboardAssembler(rangeFetcher, cfg.Analysis, cal, loc, appLogger.Named("Analysis"))

	anomalyClassifier, err := setupClassifier(cfg, appLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &application{
		Store:      store,
		Cache:      readingCache,
		Fetcher:    rangeFetcher,
		Assembler:  assembler,
		Classifier: anomalyClassifier,
		Location:   loc,
	}, nil
}

// -----------------------------------------------------------------------------

// retentionCleaner is implemented by the SQL stores.
type retentionCleaner interface {
	CleanupOldData(ctx context.Context, retentionDays int) (int64, error)
}

func describeStore(store interfaces.IReadingStore) string {
	_, indexed := store.(interfaces.IDateIndex)
	_, lister := store.(interfaces.INodeLister)
	return fmt.Sprintf("%s (date index=%v, node lister=%v)", store.Name(), indexed, lister)
}
