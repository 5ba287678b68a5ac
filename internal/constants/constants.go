// Package constants defines application-wide constants and default values.
package constants

const (
	AppName    = "debridstream"
	AppVersion = "1.0.0"

	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	// Search cache
	DefaultSearchCacheSize = 100

	// Catalog title memo
	DefaultCatalogCacheSize = 500

	// Secret scopes and names
	ScopeDebrid      = "debrid"
	ScopeCatalog     = "catalog"
	SecretAllDebrid  = "alldebrid"
	SecretTMDB       = "tmdb"
	DebridProviderAD = "alldebrid"
)

// VideoExtensions are the containers the resolver recognizes as video.
var VideoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".m4v"}

// BrowserVideoPriority ranks containers for prefer=video. MKV comes last
// because it needs the mkv_native handling.
var BrowserVideoPriority = []string{".mp4", ".webm", ".m4v", ".avi", ".mov", ".mkv"}

// DebridCDNHosts are allowed through the streaming proxy by default.
var DebridCDNHosts = []string{"alldebrid.com", "debrid.it", "alldebrid.fr"}
