package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/infrastructure/persistence"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/infrastructure/source"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/services"
	"github.com/iota-uz/unicorn-warehouse/pkg/configuration"
	"github.com/iota-uz/unicorn-warehouse/pkg/database"
)

type app struct {
	conf      *configuration.Configuration
	logger    *logrus.Entry
	pool      *pgxpool.Pool
	scheduler *services.Scheduler
}

func loadConfig(opts *globalOptions) (*configuration.Configuration, error) {
	conf, err := configuration.Load(opts.envFiles)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	if opts.source != "" {
		conf.Source.Path = opts.source
	}
	if opts.sheet != "" {
		conf.Source.Sheet = opts.sheet
	}
	return conf, nil
}

func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	conf, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(conf.Source.Path, conf.Source.Sheet)
	if err != nil {
		conf.Unload()
		return nil, withCode(exitUsage, err)
	}

	pool, err := database.NewPool(ctx, conf.Database)
	if err != nil {
		conf.Unload()
		return nil, withCode(exitDB, err)
	}

	logger := conf.Logger().WithField("app", "unicorn-etl")
	warehouse := persistence.NewWarehouse(pool, persistence.WarehouseOptions{
		BeginMaxElapsed: conf.Database.ConnectMaxElapsed,
		Logger:          logger,
	})
	loader := services.NewLoader(warehouse, services.LoaderOptions{
		SingleActive: conf.Schedule.SingleActive,
	})
	scheduler, err := services.NewScheduler(services.NewPipeline(src, loader), services.SchedulerOptions{
		MinInterval: conf.Schedule.MinInterval,
		MaxInterval: conf.Schedule.MaxInterval,
		Location:    conf.Schedule.Location(),
		Logger:      logger,
		OnTransition: func(from, to services.State) {
			logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("scheduler: state changed")
		},
	})
	if err != nil {
		pool.Close()
		conf.Unload()
		return nil, withCode(exitValidation, err)
	}

	return &app{conf: conf, logger: logger, pool: pool, scheduler: scheduler}, nil
}

func (a *app) Close() {
	a.pool.Close()
	a.conf.Unload()
}
