// Package models defines data structures for torrent search operations.
package models

import (
	"github.com/cehbz/torrentname"
)

// MediaType is the kind of content a query targets.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// Quality is the coarse release class detected from a name.
type Quality string

const (
	Quality4K      Quality = "4K"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	QualityWEB     Quality = "WEB"
	QualitySCR     Quality = "SCR"
	QualityCAM     Quality = "CAM"
	QualityUnknown Quality = "Unknown"
)

// SearchQuery is built once per search request and never mutated.
type SearchQuery struct {
	Title   string    `json:"title"`
	Type    MediaType `json:"type"`
	Year    int       `json:"year,omitempty"`
	Season  int       `json:"season,omitempty"`
	Episode int       `json:"episode,omitempty"`
	IMDBID  string    `json:"imdbId,omitempty"`
	Aliases []string  `json:"aliases,omitempty"`
}

// IsEpisode reports whether the query targets one specific episode.
func (q SearchQuery) IsEpisode() bool {
	return q.Type == MediaTV && q.Season > 0 && q.Episode > 0
}

// SourceCandidate represents one playable source returned by a provider.
type SourceCandidate struct {
	Provider       string    `json:"provider"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	InfoHash       string    `json:"infoHash,omitempty"`
	Quality        Quality   `json:"quality"`
	SizeBytes      int64     `json:"sizeBytes"`
	Size           string    `json:"size"`
	Seeders        int       `json:"seeders"`
	Leechers       int       `json:"leechers"`
	Language       string    `json:"language"`
	RequiresDebrid bool      `json:"requiresDebrid"`
	Type           MediaType `json:"type"`
	Season         int       `json:"season,omitempty"`
	Episode        int       `json:"episode,omitempty"`
	Instant        *bool     `json:"instant,omitempty"`

	ParsedInfo *torrentname.TorrentInfo `json:"-"`
}

// FilterOptions narrows a merged candidate list. Zero values disable a criterion.
type FilterOptions struct {
	Quality    Quality `json:"quality,omitempty"`
	MinSeeders int     `json:"minSeeders,omitempty"`
	MaxSize    int64   `json:"maxSize,omitempty"`
	Language   string  `json:"language,omitempty"`
}

// SearchOptions is what the registry hands to every provider.
type SearchOptions struct {
	Query      SearchQuery
	Filters    FilterOptions
	MaxResults int
}
