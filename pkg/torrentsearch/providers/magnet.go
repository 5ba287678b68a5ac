package providers

import (
	"net/url"
	"strings"
)

var defaultTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.stealth.si:80/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://tracker.openbittorrent.com:6969/announce",
}

// BuildMagnet creates a magnet URI from an info hash and display name.
func BuildMagnet(infoHash, name string) string {
	var sb strings.Builder
	sb.WriteString("magnet:?xt=urn:btih:")
	sb.WriteString(strings.ToLower(infoHash))
	if name != "" {
		sb.WriteString("&dn=")
		sb.WriteString(url.QueryEscape(name))
	}
	for _, tr := range defaultTrackers {
		sb.WriteString("&tr=")
		sb.WriteString(url.QueryEscape(tr))
	}
	return sb.String()
}

// InfoHashFromMagnet extracts the btih hash from a magnet URI, lowercased.
func InfoHashFromMagnet(magnet string) string {
	u, err := url.Parse(magnet)
	if err != nil || u.Scheme != "magnet" {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if strings.HasPrefix(xt, "urn:btih:") {
			return strings.ToLower(strings.TrimPrefix(xt, "urn:btih:"))
		}
	}
	return ""
}

func validHash(hash string) bool {
	return len(hash) == 40 && hash != strings.Repeat("0", 40)
}
