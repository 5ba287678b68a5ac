// Package services provides the application services and the container that
// hands them to the HTTP handlers and CLI commands.
package services

import (
	"github.com/amaumene/debridstream/internal/cache"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch"
)

// Container holds all application services for dependency injection.
type Container struct {
	Registry    *torrentsearch.TorrentSearch
	SearchCache *cache.SearchCache
	Search      *SearchService
	Debrid      DebridService
	Links       *LinkService
	Catalog     CatalogService
	Cleanup     *CleanupService
	Secrets     SecretStore
	DB          database.Database
	Logger      logger.Logger
}
