package catalog

import "scancart/internal/config"

// FromConfig builds the catalog described by cfg, preferring catalog.file
// over the inline [catalog.items] table.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	if cfg == nil {
		return New(config.DefaultCatalogItems())
	}
	if cfg.Catalog.File != "" {
		return LoadFile(cfg.Catalog.File)
	}
	return New(cfg.Catalog.Items)
}
