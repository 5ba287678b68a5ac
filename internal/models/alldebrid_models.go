// Package models defines the data exchanged between the services and the HTTP API.
package models

import "time"

// TorrentInfo is the debrid view of one submitted magnet.
type TorrentInfo struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Hash       string       `json:"hash,omitempty"`
	Status     string       `json:"status"`
	StatusCode int          `json:"statusCode"`
	Ready      bool         `json:"ready"`
	Files      []DebridFile `json:"files"`
}

// DebridFile is one file of a torrent and the link that unlocks it.
type DebridFile struct {
	Name string `json:"name"`
	Link string `json:"link"`
	Size int64  `json:"size"`
}

// UnlockResult is a short-lived direct URL for one file link.
type UnlockResult struct {
	DirectURL string `json:"directUrl"`
	Filename  string `json:"filename"`
	Host      string `json:"host,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

type InstantResult struct {
	Magnet  string `json:"magnet"`
	Instant bool   `json:"instant"`
}

// MagnetSummary is a magnet known to the account or to the local store.
type MagnetSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Hash       string    `json:"hash,omitempty"`
	StatusCode int       `json:"statusCode"`
	Ready      bool      `json:"ready"`
	AddedAt    time.Time `json:"addedAt,omitempty"`
}

// LinkOutcome reports one hoster link of an unlock batch.
type LinkOutcome struct {
	Success      bool   `json:"success"`
	OriginalLink string `json:"original_link"`
	Host         string `json:"host"`
	Filename     string `json:"filename,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Link         string `json:"link,omitempty"`
	Error        string `json:"error,omitempty"`
}
