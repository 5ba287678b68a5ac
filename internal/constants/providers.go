package constants

// Provider names as used in configuration keys.
const (
	ProviderApiBay      = "apibay"
	ProviderTorrentsCSV = "torrentscsv"
	ProviderYTS         = "yts"
	ProviderEZTV        = "eztv"
	ProviderYGG         = "ygg"
	Provider1337x       = "1337x"
	ProviderDirectLinks = "directlinks"
)

// AllProviders is the default registration order.
var AllProviders = []string{
	ProviderYTS,
	ProviderApiBay,
	ProviderTorrentsCSV,
	ProviderEZTV,
	Provider1337x,
	ProviderYGG,
	ProviderDirectLinks,
}
