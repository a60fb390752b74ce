// submodule cmd contains command definitions for MTAP's CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Nezreka/SoulSync-sub002/internal/formatter"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/pipeline"
	"github.com/Nezreka/SoulSync-sub002/internal/resolve"
	"github.com/Nezreka/SoulSync-sub002/internal/shared"
)

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file and database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.toml", Usage: "Path to configuration file"},
		},
		Action: r.Setup,
	}
}

// syncCommand drives the acquisition pipeline against one or all playlists.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile external playlists against the local library and acquire what's missing",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync a single playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "playlist-id", Required: true, Usage: "Playlist ID on the source catalog"},
					&cli.StringFlag{Name: "source", Value: "spotify", Usage: "Source catalog: spotify or youtube"},
					&cli.BoolFlag{Name: "json", Usage: "Output result as JSON"},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "all",
				Usage: "Sync every playlist on the source catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Value: "spotify", Usage: "Source catalog: spotify or youtube"},
					&cli.BoolFlag{Name: "force", Usage: "Re-sync playlists already up to date"},
					&cli.BoolFlag{Name: "json", Usage: "Output result as JSON"},
				},
				Action: r.SyncAll,
			},
		},
	}
}

// wishlistCommand inspects and exports the wishlist store (C11).
func wishlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "wishlist",
		Usage: "Inspect permanently-failed tracks pending retry",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print the wishlist as a Markdown table",
				Action: r.WishlistList,
			},
			{
				Name:  "export",
				Usage: "Export the wishlist to CSV or JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path"},
				},
				Action: r.WishlistExport,
			},
		},
	}
}

// statusCommand inspects the sync status store (C13).
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show each playlist's sync status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Value: "spotify", Usage: "Source catalog: spotify or youtube"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			&cli.StringFlag{Name: "export", Usage: "Also write a CSV report to this path"},
		},
		Action: r.StatusList,
	}
}

// libraryCommand triggers and reports on local-library rescans (C12).
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Local media-library operations",
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Force an immediate library rescan, bypassing the debounce window",
				Action: r.LibraryScan,
			},
		},
	}
}

// Setup loads or creates config.toml, then initializes the database and
// runs migrations, mirroring the teacher's own setup flow.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		var loadErr error
		config, loadErr = shared.LoadConfig(configPath)
		if loadErr != nil {
			r.logger.Warn("failed to load config, using defaults", "error", loadErr)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("create config file: %w", err)
		}
		var loadErr error
		config, loadErr = shared.LoadConfig(configPath)
		if loadErr != nil {
			return fmt.Errorf("load created config: %w", loadErr)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	r.logger.Infof("setup complete: %s", config.Database.Path)
	return nil
}

// SyncRun fetches one playlist, resolves any YouTube-sourced tracks
// against the canonical (Spotify) catalog, and runs it through the
// pipeline.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	playlist, err := r.fetchAndResolvePlaylist(ctx, cmd.String("source"), cmd.String("playlist-id"))
	if err != nil {
		return err
	}

	p, err := r.buildPipeline(ctx)
	if err != nil {
		return err
	}

	result, err := p.SyncPlaylist(ctx, *playlist)
	if err != nil {
		return fmt.Errorf("sync playlist %s: %w", playlist.ID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.printSyncResult(playlist.Name, result)
}

// SyncAll syncs every playlist the configured catalog returns, skipping
// playlists already SyncSynced unless --force is set.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.catalogFor(cmd.String("source"))
	if err != nil {
		return err
	}

	playlists, err := catalog.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}

	p, err := r.buildPipeline(ctx)
	if err != nil {
		return err
	}

	force := cmd.Bool("force")
	type outcome struct {
		Playlist string `json:"playlist"`
		Skipped  bool   `json:"skipped,omitempty"`
	}
	var outcomes []outcome

	for _, summary := range playlists {
		if !force && r.syncStatus != nil {
			rec, err := r.syncStatus.Get(summary.ID)
			if err == nil && models.ComputeSyncStatus(summary, rec) == models.SyncSynced {
				outcomes = append(outcomes, outcome{Playlist: summary.Name, Skipped: true})
				continue
			}
		}

		playlist, err := r.fetchAndResolvePlaylist(ctx, cmd.String("source"), summary.ID)
		if err != nil {
			r.logger.Warn("skipping playlist", "playlist", summary.Name, "error", err)
			continue
		}

		result, err := p.SyncPlaylist(ctx, *playlist)
		if err != nil {
			r.logger.Warn("sync failed", "playlist", summary.Name, "error", err)
			continue
		}
		if !cmd.Bool("json") {
			if err := r.printSyncResult(playlist.Name, result); err != nil {
				return err
			}
		}
		outcomes = append(outcomes, outcome{Playlist: playlist.Name})
	}

	if cmd.Bool("json") {
		return r.writeJSON(outcomes, true)
	}
	return nil
}

// fetchAndResolvePlaylist fetches playlistID from the named source and, if
// any track carries raw YouTube ingestion fields, resolves it against the
// Spotify catalog (C5) before returning.
func (r *Runner) fetchAndResolvePlaylist(ctx context.Context, source, playlistID string) (*models.Playlist, error) {
	catalog, err := r.catalogFor(source)
	if err != nil {
		return nil, err
	}

	playlist, err := catalog.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist %s: %w", playlistID, err)
	}

	needsResolve := false
	for _, t := range playlist.Tracks {
		if t.IsYouTubeSourced() {
			needsResolve = true
			break
		}
	}
	if !needsResolve || r.spotify == nil {
		return playlist, nil
	}

	resolutions, err := resolve.ResolveBatch(ctx, r.spotify, playlist.Tracks, resolve.BatchOpts{})
	if err != nil {
		return nil, fmt.Errorf("resolve external ids: %w", err)
	}

	resolved := make([]models.Track, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Resolved != nil {
			resolved = append(resolved, *res.Resolved)
		} else {
			resolved = append(resolved, res.Track)
		}
	}
	playlist.Tracks = resolved
	return playlist, nil
}

func (r *Runner) printSyncResult(name string, result *pipeline.Result) error {
	analyzed := len(result.Analyzed)
	missing := len(result.Acquired)
	completed, failed := 0, 0
	for _, d := range result.Acquired {
		switch d.State {
		case models.StateCompleted:
			completed++
		case models.StateFailed:
			failed++
		}
	}
	return r.writePlain("%s: %d tracks analyzed, %d missing, %d acquired, %d failed\n", name, analyzed, missing, completed, failed)
}

// WishlistList prints the wishlist as a Markdown table.
func (r *Runner) WishlistList(ctx context.Context, cmd *cli.Command) error {
	if r.wishlist == nil {
		return fmt.Errorf("database not configured; run setup first")
	}
	entries, err := r.wishlist.List()
	if err != nil {
		return fmt.Errorf("list wishlist: %w", err)
	}
	report := formatter.NewWishlistReport(entries)
	_, err = r.output.Write(formatter.WishlistToMarkdown(report))
	return err
}

// WishlistExport writes the wishlist store to a CSV or JSON file.
func (r *Runner) WishlistExport(ctx context.Context, cmd *cli.Command) error {
	if r.wishlist == nil {
		return fmt.Errorf("database not configured; run setup first")
	}
	entries, err := r.wishlist.List()
	if err != nil {
		return fmt.Errorf("list wishlist: %w", err)
	}
	report := formatter.NewWishlistReport(entries)

	var path string
	switch cmd.String("format") {
	case "json":
		path, err = formatter.WriteWishlistJSON(report, cmd.String("output"))
	default:
		path, err = formatter.WriteWishlistCSV(report, cmd.String("output"))
	}
	if err != nil {
		return err
	}
	return r.writePlain("wrote %s\n", path)
}

// StatusList prints every playlist's computed sync status, optionally
// exporting a CSV report alongside.
func (r *Runner) StatusList(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.catalogFor(cmd.String("source"))
	if err != nil {
		return err
	}
	playlists, err := catalog.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}

	records := map[string]*models.SyncStatusRecord{}
	if r.syncStatus != nil {
		all, err := r.syncStatus.List()
		if err != nil {
			return fmt.Errorf("list sync status: %w", err)
		}
		for _, rec := range all {
			records[rec.PlaylistID] = rec
		}
	}

	report := formatter.NewSyncReport(playlists, records)

	if exportPath := cmd.String("export"); exportPath != "" {
		path, err := formatter.WriteSyncCSV(report, exportPath)
		if err != nil {
			return err
		}
		r.logger.Info("wrote sync status report", "path", path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}
	for _, e := range report.Entries {
		if err := r.writePlain("%-30s %-10s last_synced=%s\n", e.Name, e.Status, formatTime(e.LastSyncedAt)); err != nil {
			return err
		}
	}
	return nil
}

// LibraryScan forces an immediate rescan, bypassing the debounce window.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	if r.scanCoord == nil {
		return fmt.Errorf("media library backend does not support scan triggers")
	}
	r.scanCoord.ForceScan("manual scan via CLI")
	return r.writePlain("scan requested\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
