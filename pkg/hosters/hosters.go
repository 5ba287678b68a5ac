// Package hosters knows which one-click file hosts the debrid service can
// unlock and how to pick their links out of free text.
package hosters

import (
	"net/url"
	"regexp"
	"strings"
)

// Supported lists the file hosts accepted for unlocking.
var Supported = []string{
	"uploaded.net", "rapidgator.net", "nitroflare.com",
	"katfile.com", "uptobox.com", "1fichier.com",
	"filerio.com", "turbobit.net", "userupload.net",
	"ddownload.com", "dropapk.to", "k2s.cc",
	"keep2share.cc", "filefactory.com", "oboom.com",
	"rapidrar.com", "file-up.org", "uploadgig.com",
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'(){}\[\]]+`)

// LinkInfo describes one parsed link.
type LinkInfo struct {
	URL       string `json:"url"`
	Host      string `json:"host"`
	Valid     bool   `json:"valid"`
	Supported bool   `json:"supported"`
	Error     string `json:"error,omitempty"`
}

// IsSupportedHost reports whether hostname belongs to a supported hoster.
func IsSupportedHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	for _, h := range Supported {
		if hostname == h || strings.HasSuffix(hostname, "."+h) {
			return true
		}
	}
	return false
}

// Validate parses link and checks it against the supported hosts.
func Validate(link string) LinkInfo {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		msg := "invalid link format"
		if err != nil {
			msg = err.Error()
		}
		return LinkInfo{URL: link, Host: "invalid", Error: msg}
	}

	host := strings.ToLower(u.Hostname())
	return LinkInfo{
		URL:       link,
		Host:      host,
		Valid:     true,
		Supported: IsSupportedHost(host),
	}
}

// ExtractLinks returns the supported hoster URLs found in text, without
// duplicates, in order of first appearance.
func ExtractLinks(text string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, raw := range urlPattern.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;")
		if seen[raw] {
			continue
		}
		if info := Validate(raw); info.Valid && info.Supported {
			seen[raw] = true
			links = append(links, raw)
		}
	}
	return links
}

// FileName guesses a display name from the last path segment of a hoster URL.
func FileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" {
		return u.Hostname()
	}
	return name
}
