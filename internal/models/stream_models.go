package models

// ResolutionStatus discriminates ResolutionResult.
type ResolutionStatus string

const (
	ResolutionOK            ResolutionStatus = "ok"
	ResolutionProcessing    ResolutionStatus = "processing"
	ResolutionNonStreamable ResolutionStatus = "non_streamable"
	ResolutionError         ResolutionStatus = "error"
)

type StreamFormat string

const (
	FormatNative     StreamFormat = "native"
	FormatMKVNative  StreamFormat = "mkv_native"
	FormatTranscoded StreamFormat = "transcoded"
)

const (
	BrowserSupportFull    = "full"
	BrowserSupportLimited = "limited"
)

// Non-streamable reason codes.
const (
	ReasonNoBrowserFriendlyFormats = "no_browser_friendly_formats"
	ReasonNoFiles                  = "no_files"
	ReasonUnlockFailed             = "unlock_failed"
)

type Compatibility struct {
	BrowserSupport string `json:"browserSupport"`
	HasHLSFallback bool   `json:"hasHlsFallback"`
	Warning        string `json:"warning,omitempty"`
}

// ResolutionResult is what /resolve and the status poll return. Exactly one
// status holds; fields not belonging to it stay empty.
type ResolutionResult struct {
	Status ResolutionStatus `json:"status"`

	DirectURL     string         `json:"directUrl,omitempty"`
	OriginalLink  string         `json:"originalLink,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	Format        StreamFormat   `json:"format,omitempty"`
	Compatibility *Compatibility `json:"compatibility,omitempty"`
	FallbackURL   string         `json:"fallbackUrl,omitempty"`

	TorrentID string `json:"torrentId,omitempty"`
	Details   string `json:"details,omitempty"`

	Reason           string   `json:"reason,omitempty"`
	AvailableFormats []string `json:"availableFormats,omitempty"`
	Suggestion       string   `json:"suggestion,omitempty"`

	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func Processing(torrentID, details string) *ResolutionResult {
	return &ResolutionResult{Status: ResolutionProcessing, TorrentID: torrentID, Details: details}
}

func NonStreamable(reason string, formats []string, suggestion string) *ResolutionResult {
	return &ResolutionResult{
		Status:           ResolutionNonStreamable,
		Reason:           reason,
		AvailableFormats: formats,
		Suggestion:       suggestion,
	}
}

// ResolveRequest is the body of POST /resolve.
type ResolveRequest struct {
	Link     string `json:"link" binding:"required"`
	Provider string `json:"provider"`
	Prefer   string `json:"prefer"`
}

// UnlockRequest is the body of POST /links/unlock: free text, explicit
// links or both.
type UnlockRequest struct {
	Text  string   `json:"text"`
	Links []string `json:"links"`
}
