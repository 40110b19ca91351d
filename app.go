package main

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/internal/influxHelper"
	"github.com/bcaldwell/finimporter/pkg/categorizer"
	"github.com/bcaldwell/finimporter/pkg/config"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
	"github.com/bcaldwell/finimporter/pkg/formats"
	"github.com/bcaldwell/finimporter/pkg/store"
)

// app is the wiring shared by commands that touch the database.
type app struct {
	cfg         *config.Config
	secrets     *config.Secrets
	store       *store.SQL
	importer    *financialimporter.TransactionImporter
	categorizer *categorizer.Categorizer
	recorder    *influxHelper.Recorder
}

func loadConfig(g *globals) (*config.Config, *config.Secrets, error) {
	cfg, secrets, err := config.Read(g.Config, g.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, secrets, nil
}

func rulesStore(cfg *config.Config) categorizer.FileRuleStore {
	return categorizer.FileRuleStore{Path: cfg.Categorize.RulesFile}
}

func newApp(ctx context.Context, g *globals) (*app, error) {
	cfg, secrets, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg.SQL, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c, err := categorizer.Load(rulesStore(cfg))
	if err != nil {
		s.Close()
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		secrets:     secrets,
		store:       s,
		importer:    financialimporter.NewTransactionImporter(s, formats.Default(), cfg.Import.SampleLimit),
		categorizer: c,
	}

	if cfg.Influx.Enabled {
		a.recorder, err = newRecorder(cfg.Influx, secrets.Influx)
		if err != nil {
			// metrics are best effort
			klog.Warningf("influx metrics disabled: %s", err)
		}
	}

	return a, nil
}

func newRecorder(cfg config.InfluxConfig, secrets config.InfluxSecrets) (*influxHelper.Recorder, error) {
	client, err := influxHelper.CreateInfluxClient(secrets)
	if err != nil {
		return nil, err
	}

	err = influxHelper.CreateDatabase(client, cfg.Database)
	if err != nil {
		client.Close()
		return nil, err
	}

	return influxHelper.NewRecorder(client, cfg.Database, cfg.Measurement), nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		klog.Errorf("failed to close database: %s", err)
	}
}

// categorize runs the categorization pass over every pending transaction and
// records the outcome.
func (a *app) categorize(ctx context.Context) (*categorizer.PassResult, error) {
	result, err := a.categorizer.CategorizePending(ctx, a.store)
	if err != nil {
		return nil, err
	}

	if a.recorder != nil {
		if err := a.recorder.RecordCategorization(result, time.Now()); err != nil {
			klog.Warningf("failed to record categorization metrics: %s", err)
		}
	}

	return result, nil
}

func (a *app) recordImport(result *financialimporter.ImportResult) {
	if a.recorder == nil || result == nil {
		return
	}

	if err := a.recorder.RecordImport(result, time.Now()); err != nil {
		klog.Warningf("failed to record import metrics: %s", err)
	}
}
