// Command ingest drives the wedding-footage archive pipeline end to end:
// it loads a project's configuration, scans one or more source paths,
// hashes/copies/validates/finalizes every file into the content-hash
// archive, and runs the post-ingest job queue (thumbnails, proxies,
// integrity re-checks, ML extraction). Grounded on cmd/shrinkray/main.go's
// shape: flag parsing, config load with env/flag overrides, component
// wiring, then an http.Server with signal-based graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/nightfoxfilms/ingestcore/internal/api"
	"github.com/nightfoxfilms/ingestcore/internal/bgservice"
	"github.com/nightfoxfilms/ingestcore/internal/camera"
	"github.com/nightfoxfilms/ingestcore/internal/config"
	"github.com/nightfoxfilms/ingestcore/internal/copier"
	"github.com/nightfoxfilms/ingestcore/internal/ffmpeg"
	"github.com/nightfoxfilms/ingestcore/internal/finalizer"
	"github.com/nightfoxfilms/ingestcore/internal/jobhandlers"
	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
	"github.com/nightfoxfilms/ingestcore/internal/metadata"
	"github.com/nightfoxfilms/ingestcore/internal/metrics"
	"github.com/nightfoxfilms/ingestcore/internal/orchestrator"
	"github.com/nightfoxfilms/ingestcore/internal/repo"
	"github.com/nightfoxfilms/ingestcore/internal/storageprofile"
	"github.com/nightfoxfilms/ingestcore/internal/validator"
	"github.com/nightfoxfilms/ingestcore/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/ingest.yaml)")
	httpAddr := flag.String("http-addr", "", "Override the API/metrics listen address from config")
	sources := flag.StringArray("source", nil, "Source path to scan (repeatable); overrides config.source_paths")
	projectName := flag.String("project-name", "", "Project name; bootstraps a new project if --project-id is not given")
	projectFolder := flag.String("project-folder", "", "Archive folder name (default: slug of --project-name)")
	projectID := flag.String("project-id", "", "Import into an existing project by id")
	resumeSession := flag.String("resume", "", "Resume a paused session by id instead of starting a new import")
	watchFlag := flag.Bool("watch", false, "Enable watch-mode auto-enqueue for the given source paths")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/ingest.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Warning: could not load config from %s: %v\n", cfgPath, err)
		cfg = config.DefaultConfig()
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *watchFlag {
		cfg.WatchEnabled = true
	}
	sourcePaths := cfg.SourcePaths
	if len(*sources) > 0 {
		sourcePaths = *sources
	}

	logger.Init(cfg.LogLevel)

	banner(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.Error("could not create database directory", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	r, err := repo.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("could not open repository", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer r.Close()

	queue, err := jobqueue.Open(r.DB())
	if err != nil {
		logger.Error("could not open job queue", "error", err)
		os.Exit(1)
	}

	providers := buildProviders(cfg)

	var ml *bgservice.Service
	if cfg.MLExtractorPath != "" {
		if err := bgservice.ReapOrphan(cfg.MLExtractorPIDFile, 10*time.Second); err != nil {
			logger.Warn("could not reap orphaned ml extractor", "error", err)
		}
		ml = bgservice.New(bgservice.Options{
			BinaryPath:  cfg.MLExtractorPath,
			HealthURL:   cfg.MLExtractorHealthURL,
			PIDFilePath: cfg.MLExtractorPIDFile,
			IdleTimeout: time.Duration(cfg.MLExtractorIdleTimeoutSec) * time.Second,
		})
	}

	handlers := &jobhandlers.Handlers{
		Repo:               r,
		Queue:              queue,
		Transcoder:         ffmpeg.NewTranscoder(cfg.FFmpegPath),
		ML:                 ml,
		MLExtractURL:       cfg.MLExtractorExtractURL,
		ProxyMaxHeight:     cfg.ProxyMaxHeight,
		ThumbnailAtSeconds: cfg.ThumbnailAtSeconds,
	}
	pool := jobqueue.NewPool(queue, cfg.ResolvedConcurrency(), time.Duration(cfg.JobQueue.PollIntervalMs)*time.Millisecond)
	handlers.Register(pool)
	pool.OnJobStart = func(kind jobqueue.Kind) { metrics.JobsRunning.WithLabelValues(string(kind)).Inc() }
	pool.OnJobEnd = func(kind jobqueue.Kind) { metrics.JobsRunning.WithLabelValues(string(kind)).Dec() }

	apiHandler := api.NewHandler(r, queue)

	bar := newProgressBar()
	orc := &orchestrator.Orchestrator{
		Repo:       r,
		Detector:   storageprofile.NewDetector(),
		Metadata:   metadata.NewProviderSet(providers...),
		Identifier: camera.New(nil),
		Queue:      queue,
		Finalizer:  finalizer.New(r, queue, cfg.GeneratorTag),
		Validator:  validator.New(validator.Options{AutoRollback: cfg.AutoRollback}),
		CopyOptions: copier.Options{
			AbortThreshold: cfg.AbortThreshold,
			TempSuffix:     cfg.TempDirSuffix,
		},
		Progress: func(stage orchestrator.Status, index, total int, filename string) {
			reportProgress(bar, stage, index, total, filename)
			apiHandler.Progress(stage, index, total, filename)
		},
		SessionEvent: apiHandler.SessionEvent,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	go metricsLoop(ctx, queue, 5*time.Second)

	if cfg.HTTPAddr != "" {
		httpServer := startHTTPServer(cfg.HTTPAddr, apiHandler)
		defer httpServer.Close()
	}

	var watcher *watch.Watcher
	if cfg.WatchEnabled && len(sourcePaths) > 0 {
		watcher = startWatch(ctx, cfg, sourcePaths, func(watchCtx context.Context) {
			runImportOrResume(watchCtx, orc, r, cfg, "", *projectID, *projectName, *projectFolder, sourcePaths)
		})
		if watcher != nil {
			defer watcher.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *resumeSession != "" || watcher == nil {
		go func() {
			<-sigChan
			fmt.Println("\n  Shutting down...")
			cancel()
		}()
		runImportOrResume(ctx, orc, r, cfg, *resumeSession, *projectID, *projectName, *projectFolder, sourcePaths)
		cancel()
		return
	}

	fmt.Println("  Watching for new footage. Press Ctrl+C to stop.")
	<-sigChan
	fmt.Println("\n  Shutting down...")
	cancel()
}

func runImportOrResume(ctx context.Context, orc *orchestrator.Orchestrator, r *repo.SQLiteRepo, cfg *config.Config, resumeID, projectID, projectName, projectFolder string, sourcePaths []string) {
	if resumeID != "" {
		session, err := r.Get(ctx, resumeID)
		if err != nil || session == nil {
			logger.Error("could not find session to resume", "session_id", resumeID, "error", err)
			return
		}
		project, err := r.FindByID(ctx, session.ProjectID)
		if err != nil || project == nil {
			logger.Error("could not find project for session", "project_id", session.ProjectID, "error", err)
			return
		}
		if _, err := orc.Resume(ctx, *session, *project); err != nil {
			logger.Error("resume failed", "session_id", resumeID, "error", err)
		}
		return
	}

	if len(sourcePaths) == 0 {
		logger.Warn("no source paths given; nothing to import")
		return
	}

	project, err := resolveProject(ctx, r, cfg, projectID, projectName, projectFolder)
	if err != nil {
		logger.Error("could not resolve project", "error", err)
		return
	}

	if _, err := orc.RunImport(ctx, *project, sourcePaths); err != nil {
		logger.Error("import failed", "error", err)
	}
}

func resolveProject(ctx context.Context, r *repo.SQLiteRepo, cfg *config.Config, id, name, folder string) (*repo.ProjectRecord, error) {
	if id != "" {
		project, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if project != nil {
			return project, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no --project-id found and no --project-name given to bootstrap one")
	}
	if folder == "" {
		folder = slugify(name)
	}
	project := repo.ProjectRecord{
		ID:          uuid.NewString(),
		Name:        name,
		FolderName:  folder,
		WorkingRoot: cfg.WorkingRoot,
	}
	if err := r.Save(ctx, project); err != nil {
		return nil, err
	}
	return &project, nil
}

func slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func buildProviders(cfg *config.Config) []metadata.Provider {
	var providers []metadata.Provider
	if exifProvider, err := metadata.NewExifProvider(); err != nil {
		logger.Warn("exiftool unavailable, EXIF metadata will be skipped", "error", err)
	} else {
		providers = append(providers, exifProvider)
	}
	providers = append(providers, metadata.NewContainerProbe(ffprobePathFor(cfg.FFmpegPath)))
	providers = append(providers, metadata.NewXMLSidecarProvider())
	providers = append(providers, metadata.NewBinarySidecarProvider())
	return providers
}

// ffprobePathFor assumes ffprobe lives alongside a non-default ffmpeg
// binary; otherwise it resolves "ffprobe" off PATH like ffmpeg does.
func ffprobePathFor(ffmpegPath string) string {
	if ffmpegPath == "" || ffmpegPath == "ffmpeg" {
		return "ffprobe"
	}
	dir := filepath.Dir(ffmpegPath)
	if dir == "." {
		return "ffprobe"
	}
	return filepath.Join(dir, "ffprobe")
}

func metricsLoop(ctx context.Context, q *jobqueue.Queue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.PollQueueStats(ctx, q)
		}
	}
}

// httpServerHandle wraps http.Server so main can defer a single Close
// call regardless of whether the API server was started.
type httpServerHandle struct {
	srv *http.Server
}

func (h *httpServerHandle) Close() {
	if h == nil || h.srv == nil {
		return
	}
	_ = h.srv.Close()
}

func startHTTPServer(addr string, h *api.Handler) *httpServerHandle {
	srv := &http.Server{Addr: addr, Handler: api.NewRouter(h)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server stopped", "error", err)
		}
	}()
	logger.Info("api server listening", "addr", addr)
	return &httpServerHandle{srv: srv}
}

func startWatch(ctx context.Context, cfg *config.Config, sourcePaths []string, trigger watch.TriggerFunc) *watch.Watcher {
	w, err := watch.New(sourcePaths, watch.Options{}, trigger)
	if err != nil {
		logger.Error("could not start watch mode", "error", err)
		return nil
	}
	go w.Run(ctx)
	return w
}

func newProgressBar() *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionClearOnFinish(),
	)
}

func reportProgress(bar *progressbar.ProgressBar, stage orchestrator.Status, index, total int, filename string) {
	if bar == nil {
		return
	}
	if total > 0 {
		bar.ChangeMax(total)
	}
	bar.Describe(fmt.Sprintf("%s: %s", stage, filename))
	_ = bar.Set(index)
}

func banner(cfg *config.Config) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Println("ingestcore — wedding footage ingest")
	fmt.Printf("  Working root: %s\n", cfg.WorkingRoot)
	fmt.Printf("  Database:     %s\n", cfg.DatabasePath)
	if cfg.HTTPAddr != "" {
		fmt.Printf("  API:          %s\n", cfg.HTTPAddr)
	}
	fmt.Println()
}
