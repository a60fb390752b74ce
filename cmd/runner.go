package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Nezreka/SoulSync-sub002/internal/acquire"
	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/library"
	"github.com/Nezreka/SoulSync-sub002/internal/pipeline"
	"github.com/Nezreka/SoulSync-sub002/internal/repositories"
	"github.com/Nezreka/SoulSync-sub002/internal/scan"
	"github.com/Nezreka/SoulSync-sub002/internal/services"
	"github.com/Nezreka/SoulSync-sub002/internal/shared"
	"github.com/Nezreka/SoulSync-sub002/internal/verify"
)

// Runner holds every dependency MTAP's commands need and provides one
// method per CLI action, mirroring the teacher's Runner shape: dependencies
// are wired once in NewRunner, actions are thin and return errors for
// urfave/cli to report.
type Runner struct {
	config *shared.Config
	db     *sql.DB
	logger *log.Logger
	output io.Writer
	bus    *events.Bus

	spotify services.Catalog
	youtube services.Catalog

	mediaLib   library.MediaLibrary
	daemon     *acquire.SlskdClient
	verifier   acquire.FingerprintVerifier
	quarantine acquire.Quarantine

	wishlist   *repositories.WishlistRepository
	syncStatus *repositories.SyncStatusRepository
	scanCoord  *scan.Coordinator
}

// RunnerConfig contains the dependencies NewRunner wires together.
type RunnerConfig struct {
	Config *shared.Config
	DB     *sql.DB
	Logger *log.Logger
	Output io.Writer
}

// NewRunner builds a Runner from cfg, constructing the media-library
// client, transfer daemon, fingerprint verifier, and scan coordinator from
// config the way [library.NewFromConfig] and the verify/acquire
// constructors expect.
func NewRunner(ctx context.Context, cfg RunnerConfig) (*Runner, error) {
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	mediaLib, err := library.NewFromConfig(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("build media library client: %w", err)
	}

	var spotifyCatalog services.Catalog
	if cfg.Config.Credentials.Spotify.ClientID != "" {
		svc, err := services.NewSpotifyService(cfg.Config.Credentials.Spotify.Map())
		if err != nil {
			cfg.Logger.Warn("spotify catalog unavailable", "error", err)
		} else {
			spotifyCatalog = svc
		}
	}
	youtubeCatalog := services.NewYouTubeService(cfg.Config.Credentials.YouTube.ProxyURL)

	daemon := acquire.NewSlskdClient(cfg.Config.TransferDaemon.BaseURL, cfg.Config.TransferDaemon.APIKey)

	fp := cfg.Config.Fingerprint
	lookup := verify.NewAcoustIDClient(fp.AcoustIDKey, fp.FpcalcPath)
	verifier := verify.NewVerifier(lookup, fp.Enabled, fp.AcoustIDKey)
	quarantine := &verify.FileQuarantine{}

	bus := events.NewBus()

	var wishlistRepo *repositories.WishlistRepository
	var syncStatusRepo *repositories.SyncStatusRepository
	if cfg.DB != nil {
		wishlistRepo = repositories.NewWishlistRepository(cfg.DB)
		syncStatusRepo = repositories.NewSyncStatusRepository(cfg.DB)
	}

	var scanCoord *scan.Coordinator
	if trigger, ok := mediaLib.(scan.Trigger); ok {
		scanCoord = scan.NewCoordinator(ctx, trigger, bus, scan.Opts{
			DebounceDelay: time.Duration(cfg.Config.Pipeline.ScanDebounceMS) * time.Millisecond,
		})
	}

	return &Runner{
		config:     cfg.Config,
		db:         cfg.DB,
		logger:     cfg.Logger,
		output:     cfg.Output,
		bus:        bus,
		spotify:    spotifyCatalog,
		youtube:    youtubeCatalog,
		mediaLib:   mediaLib,
		daemon:     daemon,
		verifier:   verifier,
		quarantine: quarantine,
		wishlist:   wishlistRepo,
		syncStatus: syncStatusRepo,
		scanCoord:  scanCoord,
	}, nil
}

// catalogFor resolves the --source flag value ("spotify" or "youtube") to
// the matching configured [services.Catalog].
func (r *Runner) catalogFor(source string) (services.Catalog, error) {
	switch source {
	case "", "spotify":
		if r.spotify == nil {
			return nil, fmt.Errorf("spotify catalog not configured (set credentials.spotify in config.toml)")
		}
		return r.spotify, nil
	case "youtube":
		return r.youtube, nil
	default:
		return nil, fmt.Errorf("unknown source %q (expected spotify or youtube)", source)
	}
}

// buildPipeline loads the local library index and assembles a
// [pipeline.Pipeline] against it, per invocation — the index is a
// point-in-time bulk load (C4), so a fresh one is built for every sync run
// rather than cached across commands.
func (r *Runner) buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	idx, err := library.Load(ctx, r.mediaLib)
	if err != nil {
		return nil, fmt.Errorf("load media library: %w", err)
	}

	p := r.config.Pipeline
	var wishlistStore pipeline.WishlistStore
	var syncStatusStore pipeline.SyncStatusStore
	if r.wishlist != nil {
		wishlistStore = r.wishlist
	}
	if r.syncStatus != nil {
		syncStatusStore = r.syncStatus
	}

	return pipeline.New(idx, r.daemon, r.verifier, r.quarantine, r.bus, wishlistStore, syncStatusStore, r.scanCoord, pipeline.Opts{
		AnalysisWorkers:     p.AnalysisWorkers,
		ConcurrentDownloads: p.ConcurrentDownloads,
		QualityPreference:   p.QualityPreference,
		MaxRetries:          p.MaxRetries,
		StallTimeout:        time.Duration(p.QueueStallSeconds) * time.Second,
		PollInterval:        time.Duration(r.config.TransferDaemon.PollIntervalMS) * time.Millisecond,
	}), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	out, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = r.output.Write([]byte("\n"))
	return err
}

func (r *Runner) writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(r.output, format, args...)
	return err
}
