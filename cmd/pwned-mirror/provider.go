package main

import (
	"fmt"

	"github.com/calvinalkan/pwnedmirror/internal/config"
	"github.com/calvinalkan/pwnedmirror/internal/provider"
)

// buildProvider constructs the Range Provider selected by cfg. The
// returned closer should be called once the provider is no longer needed
// (a no-op for Upstream and Mock, a close of the mmap'd bulk file for
// FileImporter).
func buildProvider(cfg config.Config) (provider.Provider, func() error, error) {
	switch cfg.ProviderKind {
	case config.ProviderUpstream:
		return provider.NewUpstream(cfg.UpstreamBaseURL), func() error { return nil }, nil

	case config.ProviderFile:
		importer, err := provider.OpenFileImporter(cfg.ProviderFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening bulk file %s: %w", cfg.ProviderFilePath, err)
		}
		return importer, importer.Close, nil

	case config.ProviderMock:
		return provider.NewMock(nil), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unrecognized provider kind %q", cfg.ProviderKind)
	}
}
