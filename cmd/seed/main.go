package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/config"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/storage"
	"power-observer/src/utils"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	node := flag.String("node", "C-1", "node id to seed")
	start := flag.String("start", time.Now().Format(utils.DateLayout), "first day (YYYY-MM-DD)")
	end := flag.String("end", "", "last day (YYYY-MM-DD), defaults to start")
	interval := flag.Duration("interval", 30*time.Second, "sample cadence")
	anomalyRate := flag.Float64("anomaly-rate", 0.02, "share of out-of-band samples")
	dipStart := flag.Duration("dip-start", 12*time.Hour, "offset of the voltage dip from midnight")
	dipLength := flag.Duration("dip-length", 90*time.Second, "length of the voltage dip, 0 disables it")
	dipVoltage := flag.Float64("dip-voltage", 140, "voltage during the dip")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(cfg.LogLevel, "Seed")

	loc, err := cfg.Location()
	if err != nil {
		appLogger.Critical("%v", err)
		os.Exit(1)
	}
	if *end == "" {
		*end = *start
	}
	first, err := utils.ParseDate("start", *start, loc)
	if err != nil {
		appLogger.Critical("%v", err)
		os.Exit(1)
	}
	last, err := utils.ParseDate("end", *end, loc)
	if err != nil {
		appLogger.Critical("%v", err)
		os.Exit(1)
	}

	writer, closer, err := openWriter(cfg, loc, appLogger)
	if err != nil {
		appLogger.Critical("%v", err)
		os.Exit(1)
	}
	defer closer.Close()

	thresholds, _ := analysis.NewThresholdAnomalyDetector(cfg.Analysis.Thresholds).Preset(analysis.PresetGeneral)
	gen := generatorConfig{
		Node:        *node,
		Interval:    *interval,
		AnomalyRate: *anomalyRate,
		DipStart:    *dipStart,
		DipLength:   *dipLength,
		DipVoltage:  *dipVoltage,
		Location:    "synthetic",
	}
	rng := rand.New(rand.NewSource(*seed))

	ctx := context.Background()
	for _, day := range utils.EnumerateDays(first, last) {
		raw := generateDay(gen, day, rng, thresholds)
		if err := writer.SaveDay(ctx, *node, day, raw); err != nil {
			appLogger.Critical("Saving %s %s failed: %v", *node, utils.DayKey(day), err)
			os.Exit(1)
		}
		appLogger.Info("Seeded %s %s with %d readings", *node, utils.DayKey(day), len(raw))
	}
}

// -----------------------------------------------------------------------------

// openWriter opens the configured SQL store for writing.
func openWriter(cfg *config.Config, loc *time.Location, appLogger *logger.Logger) (interfaces.IReadingWriter, interfaces.IReadingStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		pg := storage.NewPostgresReadingStore(cfg.Storage.DBConnectionString, cfg.Name, loc, appLogger.Named("PostgresStore"))
		if err := pg.Initialize(); err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	case "sqlite":
		lite := storage.NewSQLiteReadingStore(cfg.Storage.DBPath, loc, appLogger.Named("SQLiteStore"))
		if err := lite.Initialize(); err != nil {
			return nil, nil, err
		}
		return lite, lite, nil
	}
	return nil, nil, fmt.Errorf("store %q is read-only; seed a sqlite or postgres store", cfg.Storage.DBType)
}
