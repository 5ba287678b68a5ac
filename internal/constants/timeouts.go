// Package constants also holds the timeouts and retry values shared by the services.
package constants

import "time"

const (
	SearchTimeout       = 15 * time.Second
	ProviderMinInterval = time.Second

	SearchCacheTTL     = 5 * time.Minute
	CacheSweepInterval = 60 * time.Second
	CatalogTTL         = time.Hour

	DebridRetries       = 3
	DebridBackoff       = 750 * time.Millisecond
	DebridMinInterval   = 100 * time.Millisecond
	LinkUnlockSpacing   = time.Second
	ProxyHeaderTimeout  = 30 * time.Second
	TranscodeRetention  = time.Hour
	TranscodeFailedKeep = 30 * time.Second

	CleanupRetention = 4 * time.Hour

	ShutdownTimeout    = 10 * time.Second
	StatusCheckTimeout = 15 * time.Second
)
