//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/concoursapp/catalogsync/internal/bootstrap"
	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	"github.com/concoursapp/catalogsync/internal/infra/config"
	"github.com/concoursapp/catalogsync/internal/infra/remote"
	httpiface "github.com/concoursapp/catalogsync/internal/interface/http"
	"github.com/concoursapp/catalogsync/pkg/logger"
	"github.com/concoursapp/catalogsync/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewSyncCounters,
		provideCatalogConfig,
		provideFetcher,
		provideMonitor,
		provideStore,
		provideSnapshotCache,
		catalog.NewService,
		wire.Bind(new(catalog.Fetcher), new(*remote.Client)),
		wire.Bind(new(catalog.Monitor), new(runtimeMonitor)),
		wire.Bind(new(bootstrap.Lifecycle), new(runtimeMonitor)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
