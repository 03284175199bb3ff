package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"econgrid.ai/internal/metrics"
	persistlog "econgrid.ai/internal/persistence/log"
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/tuning"
	"econgrid.ai/internal/sim/world"
	"econgrid.ai/internal/transport/observer"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load(".env")

	var (
		addr         = flag.String("addr", envString("ECONGRID_ADDR", ":8080"), "http listen address")
		scenarioPath = flag.String("scenario", "./configs/scenarios/two_markets.yaml", "scenario yaml")
		worldID      = flag.String("world", "", "world id (default: scenario id)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite tick index")
		redisAddr    = flag.String("redis", envString("ECONGRID_REDIS_ADDR", ""), "redis address for tick summaries (empty to disable)")
		ticks        = flag.Int("ticks", 0, "run this many ticks unpaced and exit (0: run until signalled)")
		checkOnly    = flag.Bool("check", false, "validate the scenario and exit")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	scn, err := tuning.LoadScenario(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	if *checkOnly {
		if err := scn.Validate(); err != nil {
			logger.Fatalf("scenario: %v", err)
		}
		logger.Printf("scenario ok: %s sha256=%s", *scenarioPath, scn.Digest())
		return
	}
	cfg, err := scn.WorldConfig()
	if err != nil {
		logger.Fatalf("scenario: %v", err)
	}
	if id := strings.TrimSpace(*worldID); id != "" {
		cfg.ID = id
	}
	if cfg.ID == "" {
		cfg.ID = "world_1"
	}

	worldDir := filepath.Join(*dataDir, "worlds", cfg.ID)
	_ = os.MkdirAll(worldDir, 0o755)
	snapDir := filepath.Join(worldDir, "snapshots")

	w, err := world.New(cfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if p, _, err := snapshot.Latest(snapDir); err == nil {
			snapshotToLoad = p
		} else if !errors.Is(err, snapshot.ErrNoSnapshot) {
			logger.Printf("scan snapshots: %v", err)
		}
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	runID := uuid.NewString()
	logger.Printf("run=%s world=%s scenario=%s digest=%.12s", runID, cfg.ID, *scenarioPath, scn.Digest())

	// Read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordRun(runID, cfg.ID, cfg.Seed, w.CurrentTick(), scn); err != nil {
			logger.Printf("index backend: record run: %v", err)
		}
	}

	pub, err := openPublisher(*redisAddr, cfg.ID, runID, logger)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	if pub != nil {
		defer pub.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	w.SetObserver(m)
	if idx != nil {
		metrics.QueueGauge(prometheus.DefaultRegisterer, "econgrid_index_queue_depth", "Pending index writes", func() float64 {
			return float64(idx.Stats().QueueDepth)
		})
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	sinks := persistlog.Multi{tickLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	if pub != nil {
		sinks = append(sinks, pub)
	}
	w.SetTickLogger(sinks)

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snaps := newSnapshotWriter(worldDir, idx, w.Config().Modes, logger)
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case snap := <-snapCh:
						if _, err := snaps.persist(snap); err != nil {
							logger.Printf("snapshot write: %v", err)
						}
					default:
						return
					}
				}
			case snap := <-snapCh:
				if _, err := snaps.persist(snap); err != nil {
					logger.Printf("snapshot write: %v", err)
				}
			}
		}
	}()

	if *ticks > 0 {
		start := time.Now()
		if err := w.RunTicks(ctx, *ticks); err != nil {
			logger.Fatalf("run: %v", err)
		}
		logger.Printf("ran %d ticks in %s; next tick=%d", *ticks, time.Since(start).Round(time.Millisecond), w.CurrentTick())
		cancel()
		<-snapDone
		snaps.final(w)
		return
	}

	obs := observer.NewServer(w, logger, observer.Options{
		LoopbackOnly: envBool("ECONGRID_OBSERVER_LOOPBACK_ONLY", false),
		Hooks: observer.Hooks{
			Connected: func(n int) { m.WSConnections.Set(float64(n)) },
			Rejected:  func(reason string) { m.ConnectionRejected.WithLabelValues(reason).Inc() },
		},
	})
	go obs.Run(ctx)

	worldErr := make(chan error, 1)
	go func() {
		err := w.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
		worldErr <- err
	}()

	srv := &http.Server{
		Addr: *addr,
		Handler: newRouter(routerConfig{
			World:       w,
			Observer:    obs,
			Gatherer:    prometheus.DefaultGatherer,
			CORSOrigins: splitList(envString("ECONGRID_CORS_ORIGINS", "")),
			EnablePprof: envBool("ECONGRID_ENABLE_PPROF_HTTP", false),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldErr
	<-snapDone
	snaps.final(w)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
