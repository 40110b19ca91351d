package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/internal/csvimporter"
)

type Runner interface {
	Run(ctx context.Context) error
}

// syncRunner imports every configured source, then categorizes what arrived.
type syncRunner struct {
	app *app
}

func newSyncRunner(a *app) *syncRunner {
	return &syncRunner{app: a}
}

func (r *syncRunner) Run(ctx context.Context) error {
	var failed []error

	if r.app.cfg.Import.InboxDir != "" {
		if err := r.importInbox(ctx); err != nil {
			failed = append(failed, err)
		}
	}

	if len(r.app.cfg.Ynab.Budgets) > 0 {
		if err := r.importYNAB(ctx); err != nil {
			failed = append(failed, err)
		}
	}

	result, err := r.app.categorize(ctx)
	if err != nil {
		failed = append(failed, err)
	} else {
		klog.Infof("categorized %d of %d pending transactions", result.Updated, result.Examined)
	}

	return errors.Join(failed...)
}

func (r *syncRunner) importInbox(ctx context.Context) error {
	inbox := csvimporter.NewInboxRunner(r.app.importer, r.app.cfg.Import.InboxDir, r.app.cfg.Import.DefaultCurrency)

	results, err := inbox.Run(ctx)
	if err != nil {
		return fmt.Errorf("inbox import failed: %w", err)
	}

	for _, fr := range results {
		if fr.Err != nil {
			klog.Errorf("failed to import %s: %s", fr.File, fr.Err)
			continue
		}
		r.app.recordImport(fr.Result)
	}

	return nil
}

func (r *syncRunner) importYNAB(ctx context.Context) error {
	runner, err := ynabRunner(r.app)
	if err != nil {
		return err
	}

	results, err := runner.Run(ctx)
	for _, result := range results {
		r.app.recordImport(result)
	}
	if err != nil {
		return fmt.Errorf("ynab import failed: %w", err)
	}

	return nil
}

// watch runs runner once and then on schedule until ctx is done.
func watch(ctx context.Context, schedule string, runner Runner, singleRun bool) error {
	run := func() {
		klog.Info(time.Now().Format(time.RFC850))
		err := runner.Run(ctx)
		if err != nil {
			klog.Error(err)
		}
	}

	run()

	if singleRun {
		return nil
	}

	c := cron.New()
	err := c.AddFunc(schedule, run)
	if err != nil {
		return fmt.Errorf("invalid update frequency %q: %w", schedule, err)
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}
