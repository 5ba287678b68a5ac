package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/internal/resolver"
	"github.com/amaumene/debridstream/internal/services"
	searchmodels "github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/security"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(true)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve()
		},
	}
}

func newSearchCommand() *cobra.Command {
	var (
		req     services.SearchRequest
		tv      bool
		asJSON  bool
		quality string
	)
	cmd := &cobra.Command{
		Use:   "search [title]",
		Short: "Search every enabled provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Query.Title = args[0]
			}
			req.Query.Type = searchmodels.MediaMovie
			if tv {
				req.Query.Type = searchmodels.MediaTV
			}
			req.Filters.Quality = searchmodels.Quality(quality)

			app, err := loadApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			if req.MaxResults == 0 {
				req.MaxResults = app.Config.Search.MaxResults
			}
			res, err := app.Services.Search.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printCandidates(cmd.OutOrStdout(), res.Results)
			for name, msg := range res.ProviderErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", name, msg)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Query.IMDBID, "imdb", "", "IMDB id, resolves the title when none is given")
	f.IntVar(&req.Query.Year, "year", 0, "release year")
	f.BoolVar(&tv, "tv", false, "search for a series")
	f.IntVar(&req.Query.Season, "season", 0, "season number")
	f.IntVar(&req.Query.Episode, "episode", 0, "episode number")
	f.StringVar(&quality, "quality", "", "keep only this quality (4K, 1080p, 720p...)")
	f.IntVar(&req.Filters.MinSeeders, "min-seeders", 0, "minimum seeders")
	f.StringVar(&req.Filters.Language, "language", "", "language tag, e.g. french")
	f.IntVar(&req.MaxResults, "max", 0, "maximum results")
	f.BoolVar(&req.Instant, "instant", false, "annotate debrid instant availability")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printCandidates(w io.Writer, results []searchmodels.SourceCandidate) {
	for i, c := range results {
		instant := ""
		if c.Instant != nil && *c.Instant {
			instant = " [instant]"
		}
		fmt.Fprintf(w, "%2d. %s\n    %s | %s | %d seeders | %s%s\n    %s\n",
			i+1, c.Name, c.Quality, humanize.IBytes(uint64(c.SizeBytes)), c.Seeders, c.Provider, instant, c.URL)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
	}
}

func newResolveCommand() *cobra.Command {
	var (
		provider string
		prefer   string
		wait     bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <magnet|hash|link>",
		Short: "Resolve a source to a playable URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolver.ParsePrefer(prefer)
			if err != nil {
				return err
			}
			app, err := loadApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Resolver.Resolve(cmd.Context(), args[0], provider, p)
			if err != nil {
				return err
			}
			if wait && res.Status == models.ResolutionProcessing {
				fmt.Fprintf(cmd.ErrOrStderr(), "torrent %s is processing, waiting...\n", res.TorrentID)
				res, err = app.Resolver.PollUntilReady(cmd.Context(), provider, res.TorrentID, p, resolver.PollOptions{})
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&provider, "provider", constants.DebridProviderAD, "debrid provider")
	f.StringVar(&prefer, "prefer", string(resolver.PreferVideo), "file preference: video or any")
	f.BoolVar(&wait, "wait", false, "poll until the torrent is ready")
	return cmd
}

func newUnlockCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "unlock [links...]",
		Short: "Unlock hoster links through the debrid service",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			links := app.Services.Links.ExtractLinks(strings.Join(args, "\n"))
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				links = append(links, app.Services.Links.ExtractLinks(string(data))...)
			}
			links = dedupe(links)
			if len(links) == 0 {
				return fmt.Errorf("no supported links found")
			}

			results := app.Services.Links.UnlockBatch(cmd.Context(), links)
			successful := 0
			for _, r := range results {
				if r.Success {
					successful++
					fmt.Fprintf(cmd.OutOrStdout(), "OK   %s\n     %s (%s)\n", r.OriginalLink, r.Link, humanize.IBytes(uint64(r.Size)))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", r.OriginalLink, r.Error)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d links unlocked\n", successful, len(results))

			if file != "" {
				out := strings.TrimSuffix(file, filepath.Ext(file)) + "_results.json"
				if err := saveResults(out, results); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "results saved to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read links from a text file")
	return cmd
}

func saveResults(path string, results []models.LinkOutcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	defer f.Close()
	return writeJSON(f, results)
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and test the debrid connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()
			cfg := app.Config
			fmt.Fprintf(w, "version:    %s\n", constants.AppVersion)
			fmt.Fprintf(w, "providers:  %s\n", strings.Join(app.Services.Registry.Providers(), ", "))
			fmt.Fprintf(w, "debrid key: %s\n", security.MaskAPIKey(cfg.AllDebridAPIKey))
			fmt.Fprintf(w, "tmdb key:   %s\n", security.MaskAPIKey(cfg.TMDBAPIKey))
			fmt.Fprintf(w, "transcode:  enabled=%t mode=%s dir=%s\n", cfg.Transcode.Enabled, cfg.Transcode.Mode, cfg.Transcode.Dir)

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.StatusCheckTimeout)
			defer cancel()
			if err := app.Services.Links.TestConnection(ctx); err != nil {
				fmt.Fprintf(w, "debrid:     unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintln(w, "debrid:     connected")
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
