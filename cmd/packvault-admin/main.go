// Package main is the PackVault operator CLI. It talks directly to the
// database and object store, bypassing the HTTP surface, so it works
// even when the server is down.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/config"
	"github.com/prn-tf/packvault/internal/lock"
	"github.com/prn-tf/packvault/internal/manifest"
	"github.com/prn-tf/packvault/internal/metrics"
	"github.com/prn-tf/packvault/internal/repository"
	"github.com/prn-tf/packvault/internal/repository/postgres"
	"github.com/prn-tf/packvault/internal/repository/sqlite"
	"github.com/prn-tf/packvault/internal/service"
	"github.com/prn-tf/packvault/internal/storage"
	fsstore "github.com/prn-tf/packvault/internal/storage/fs"
	s3store "github.com/prn-tf/packvault/internal/storage/s3"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: packvault-admin [-config FILE] COMMAND [ARGS]

Commands:
  packages                            list registered packages
  versions PACKAGE                    list a package's versions in release order
  manifest PACKAGE VERSION            print a version's manifest JSON
  reconstruct PACKAGE VERSION_FILE    rebuild an archive (-o sets the output path)`)
	os.Exit(2)
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	output := flag.String("o", "archive.zip", "output path for reconstruct")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	cfg := config.MustLoad(*configPath)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, cleanup, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.run(ctx, flag.Args(), *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type adminApp struct {
	repos        *repository.Repositories
	manifests    *manifest.Tracker
	reconstructs *service.ReconstructService
}

func bootstrap(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*adminApp, func(), error) {
	var (
		repos   *repository.Repositories
		cleanup func()
	)
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		repos = sqlite.NewRepositories(db)
		cleanup = func() { db.Close() }
	} else {
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Minute,
			ConnMaxIdleTime: time.Minute,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repos = postgres.NewRepositories(db)
		cleanup = func() { db.Close() }
	}

	var store storage.ObjectStore
	if cfg.Storage.Backend == "s3" {
		s3s, err := s3store.New(ctx, s3store.Options{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			Prefix:          cfg.Storage.S3.Prefix,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open s3 storage: %w", err)
		}
		store = s3s
	} else {
		fss, err := fsstore.New(cfg.Storage.DataDir, cfg.Storage.TempDir, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open filesystem storage: %w", err)
		}
		store = fss
	}

	// Read-only workload, so an in-process lock and no cache are enough.
	tracker := manifest.NewTracker(store, lock.NewMemoryLocker(), nil, manifest.DefaultOptions(), logger)
	reconstructs := service.NewReconstructService(repos, store, tracker,
		metrics.NewNop(), logger, cfg.Storage.BlobTimeout)

	return &adminApp{
		repos:        repos,
		manifests:    tracker,
		reconstructs: reconstructs,
	}, cleanup, nil
}

func (a *adminApp) run(ctx context.Context, args []string, output string) error {
	switch args[0] {
	case "packages":
		packages, err := a.repos.Packages.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range packages {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
		}
		return nil

	case "versions":
		if len(args) != 2 {
			usage()
		}
		versions, err := a.repos.Versions.ListByPackage(ctx, args[1])
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("%d\t%s\t%s\t%s/%s\n", v.Ordinal, v.ID, v.Label, v.Minecraft, v.Loader)
		}
		return nil

	case "manifest":
		if len(args) != 3 {
			usage()
		}
		m, err := a.manifests.Load(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)

	case "reconstruct":
		if len(args) != 3 {
			usage()
		}
		versionFileID, err := uuid.Parse(args[2])
		if err != nil {
			return fmt.Errorf("version file id must be a UUID: %w", err)
		}
		data, err := a.reconstructs.Reconstruct(ctx, args[1], versionFileID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), output)
		return nil

	default:
		usage()
		return nil
	}
}
