//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"marketfeed/internal/fetch"
	"marketfeed/internal/normalize"
)

var coreSet = wire.NewSet(
	ProvideSettings,
	ProvideMirror,
	ProvideManager,
	ProvideSession,
	ProvideAdapters,
	ProvideCache,
	ProvideNormalizer,
	wire.Bind(new(fetch.Normalizer), new(*normalize.Normalizer)),
	ProvideOrchestrator,
)

// InitializeServer builds the HTTP server and its dependencies.
// The cleanup closes the orchestrator, its session and the config store.
func InitializeServer(path ConfigPath) (*Server, func(), error) {
	wire.Build(
		coreSet,
		ProvideServer,
		ProvideWarmer,
		wire.Struct(new(Server), "*"),
	)
	return nil, nil, nil
}

// InitializeFetcher builds the orchestrator for one-shot CLI use.
func InitializeFetcher(path ConfigPath) (*Fetcher, func(), error) {
	wire.Build(
		coreSet,
		wire.Struct(new(Fetcher), "Config", "Orchestrator", "Adapters"),
	)
	return nil, nil, nil
}
