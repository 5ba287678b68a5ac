// Package resolver turns a search result into something a browser can play:
// a proxied stream URL, a pending torrent to poll, or a non-streamable verdict.
package resolver

import (
	"context"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/metrics"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/internal/services"
	"github.com/amaumene/debridstream/pkg/hosters"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/providers"
)

type Prefer string

const (
	// PreferVideo ranks files by browser playability.
	PreferVideo Prefer = "video"
	// PreferAny takes the first video file in the order the debrid service listed it.
	PreferAny Prefer = "any"
)

// ParsePrefer defaults to PreferVideo.
func ParsePrefer(s string) (Prefer, error) {
	switch Prefer(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreferVideo:
		return PreferVideo, nil
	case PreferAny:
		return PreferAny, nil
	}
	return "", errors.NewInvalidRequestError("prefer must be video or any")
}

// Transcoder offers a fallback output for containers browsers play poorly.
type Transcoder interface {
	Eligible(filename string) bool
	FallbackURL(sourceURL, filename string) string
}

const nonStreamableSuggestion = "try another source or download externally"

type Resolver struct {
	debrid     services.DebridService
	transcoder Transcoder
	logger     logger.Logger
}

func New(debrid services.DebridService, transcoder Transcoder, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{debrid: debrid, transcoder: transcoder, logger: log}
}

func checkProvider(provider string) error {
	if provider == "" || strings.EqualFold(provider, constants.DebridProviderAD) {
		return nil
	}
	return errors.NewInvalidRequestError("unsupported debrid provider " + provider)
}

// Resolve runs the pipeline for a magnet, info hash, hoster link or direct URL.
// It never waits for a download: a torrent without files yet is reported as
// processing and can be polled with Status.
func (r *Resolver) Resolve(ctx context.Context, link, provider string, prefer Prefer) (*models.ResolutionResult, error) {
	res, err := r.resolve(ctx, strings.TrimSpace(link), provider, prefer)
	record(res, err)
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, link, provider string, prefer Prefer) (*models.ResolutionResult, error) {
	if link == "" {
		return nil, errors.NewInvalidRequestError("link is required")
	}
	if err := checkProvider(provider); err != nil {
		return nil, err
	}

	if isHTTP(link) {
		if info := hosters.Validate(link); info.Supported && r.debrid.IsConfigured() {
			return r.resolveHosterLink(ctx, link)
		}
		r.logger.Debugf("[Resolver] direct link %s", link)
		return r.streamable(link, link, fileNameOf(link)), nil
	}

	if !r.debrid.IsConfigured() {
		return nil, errors.NewAPIKeyMissingError(constants.DebridProviderAD)
	}
	id, err := r.debrid.AddMagnet(ctx, link)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("[Resolver] magnet submitted as %s", id)
	return r.fromTorrent(ctx, id, hashOf(link), prefer)
}

// Status is the poll step for a torrent returned as processing.
func (r *Resolver) Status(ctx context.Context, provider, torrentID string, prefer Prefer) (*models.ResolutionResult, error) {
	if err := checkProvider(provider); err != nil {
		return nil, err
	}
	if strings.TrimSpace(torrentID) == "" {
		return nil, errors.NewInvalidRequestError("torrent id is required")
	}
	res, err := r.fromTorrent(ctx, torrentID, "", prefer)
	record(res, err)
	return res, err
}

func (r *Resolver) resolveHosterLink(ctx context.Context, link string) (*models.ResolutionResult, error) {
	unlocked, err := r.debrid.UnrestrictLink(ctx, link)
	if err != nil {
		r.logger.WithField("kind", errors.KindOf(err)).
			Warnf("[Resolver] hoster unlock failed, using original link: %v", err)
		return r.streamable(link, link, fileNameOf(link)), nil
	}
	name := unlocked.Filename
	if name == "" {
		name = fileNameOf(link)
	}
	return r.streamable(unlocked.DirectURL, link, name), nil
}

func (r *Resolver) fromTorrent(ctx context.Context, torrentID, hash string, prefer Prefer) (*models.ResolutionResult, error) {
	info, err := r.debrid.GetTorrentInfo(ctx, torrentID)
	if err != nil {
		if errors.Is(err, errors.KindTorrentStatusUnavailable) {
			r.logger.WithField("kind", errors.KindTorrentStatusUnavailable).
				Warnf("[Resolver] status for %s unavailable: %v", torrentID, err)
			return models.Processing(torrentID, "status temporarily unavailable, retry shortly"), nil
		}
		return nil, err
	}

	files := info.Files
	if len(files) == 0 {
		if hash == "" {
			hash = info.Hash
		}
		files = r.filesFromRecent(ctx, torrentID, hash)
	}
	if len(files) == 0 {
		details := info.Status
		if details == "" {
			details = "waiting for files"
		}
		return models.Processing(torrentID, details), nil
	}
	return r.selectAndUnlock(ctx, files, prefer)
}

// filesFromRecent looks for another ready magnet of the same content on the
// account, which the service sometimes lists before the new handle has files.
func (r *Resolver) filesFromRecent(ctx context.Context, torrentID, hash string) []models.DebridFile {
	if hash == "" {
		return nil
	}
	recent, err := r.debrid.ListRecentMagnets(ctx)
	if err != nil {
		r.logger.WithField("kind", errors.KindOf(err)).Debugf("[Resolver] recent magnets unavailable: %v", err)
		return nil
	}
	for _, m := range recent {
		if m.ID == torrentID || !m.Ready || !strings.EqualFold(m.Hash, hash) {
			continue
		}
		info, err := r.debrid.GetTorrentInfo(ctx, m.ID)
		if err != nil || len(info.Files) == 0 {
			continue
		}
		r.logger.Debugf("[Resolver] using files of recent magnet %s for %s", m.ID, torrentID)
		return info.Files
	}
	return nil
}

func (r *Resolver) selectAndUnlock(ctx context.Context, files []models.DebridFile, prefer Prefer) (*models.ResolutionResult, error) {
	if len(files) > constants.MaxFileCandidates {
		files = files[:constants.MaxFileCandidates]
	}
	ordered, formats := SelectFiles(files, prefer)
	if len(ordered) == 0 {
		r.logger.Infof("[Resolver] no playable file among formats %v", formats)
		return models.NonStreamable(models.ReasonNoBrowserFriendlyFormats, formats, nonStreamableSuggestion), nil
	}

	for _, f := range ordered {
		ext := strings.ToLower(path.Ext(f.Name))
		unlocked, err := r.debrid.UnrestrictLink(ctx, f.Link)
		if err != nil {
			if ext == ".mkv" || ext == ".avi" {
				r.logger.WithField("kind", errors.KindOf(err)).
					Warnf("[Resolver] unlock failed for %s, trying next file: %v", f.Name, err)
				continue
			}
			r.logger.WithField("kind", errors.KindOf(err)).
				Warnf("[Resolver] unlock failed for %s, serving original link: %v", f.Name, err)
			return r.streamable(f.Link, f.Link, f.Name), nil
		}
		name := unlocked.Filename
		if name == "" {
			name = f.Name
		}
		return r.streamable(unlocked.DirectURL, f.Link, name), nil
	}
	return models.NonStreamable(models.ReasonUnlockFailed, formats, "try another source"), nil
}

// SelectFiles returns the video files in the order they should be tried and
// the distinct extensions seen. Equal ranks keep their listed order.
func SelectFiles(files []models.DebridFile, prefer Prefer) ([]models.DebridFile, []string) {
	var (
		video   []models.DebridFile
		formats []string
		seen    = map[string]bool{}
	)
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		if ext != "" && !seen[ext] {
			seen[ext] = true
			formats = append(formats, strings.TrimPrefix(ext, "."))
		}
		if isVideo(ext) {
			video = append(video, f)
		}
	}
	if prefer != PreferAny {
		sort.SliceStable(video, func(i, j int) bool {
			return priority(video[i].Name) < priority(video[j].Name)
		})
	}
	return video, formats
}

func isVideo(ext string) bool {
	for _, v := range constants.VideoExtensions {
		if v == ext {
			return true
		}
	}
	return false
}

func priority(name string) int {
	ext := strings.ToLower(path.Ext(name))
	for i, p := range constants.BrowserVideoPriority {
		if p == ext {
			return i
		}
	}
	return len(constants.BrowserVideoPriority)
}

func (r *Resolver) streamable(direct, original, filename string) *models.ResolutionResult {
	res := &models.ResolutionResult{
		Status:       models.ResolutionOK,
		DirectURL:    StreamURL(direct),
		OriginalLink: original,
		Filename:     filename,
		Format:       models.FormatNative,
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".mkv":
		fallback := r.transcoder != nil && r.transcoder.Eligible(filename)
		res.Format = models.FormatMKVNative
		res.Compatibility = &models.Compatibility{
			BrowserSupport: models.BrowserSupportLimited,
			HasHLSFallback: fallback,
			Warning:        "MKV plays only where the browser supports its codecs",
		}
		if fallback {
			res.FallbackURL = r.transcoder.FallbackURL(direct, filename)
		}
	case ".avi":
		res.Compatibility = &models.Compatibility{
			BrowserSupport: models.BrowserSupportLimited,
			Warning:        "AVI is not supported by most browsers",
		}
	default:
		res.Compatibility = &models.Compatibility{BrowserSupport: models.BrowserSupportFull}
	}
	return res
}

// StreamURL is the proxy-relative URL for an upstream file.
func StreamURL(upstream string) string {
	return "/stream/" + url.PathEscape(upstream)
}

func isHTTP(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func hashOf(link string) string {
	if strings.HasPrefix(strings.ToLower(link), "magnet:") {
		return providers.InfoHashFromMagnet(link)
	}
	return strings.ToLower(link)
}

func fileNameOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	name, err := url.PathUnescape(path.Base(u.Path))
	if err != nil || name == "/" || name == "." {
		return ""
	}
	return name
}

func record(res *models.ResolutionResult, err error) {
	if err != nil {
		metrics.Resolutions.WithLabelValues(string(models.ResolutionError)).Inc()
		return
	}
	metrics.Resolutions.WithLabelValues(string(res.Status)).Inc()
}
