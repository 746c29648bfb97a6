// Command recognition-worker is the process entrypoint: it wires config,
// Postgres, Redis, NATS and metrics together and runs the snapshot
// refresher plus one camera supervisor per active, recognition-capable
// camera until terminated.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/sentryvms/facecore/internal/aiclient"
	"github.com/sentryvms/facecore/internal/autoenroll"
	"github.com/sentryvms/facecore/internal/config"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/events"
	"github.com/sentryvms/facecore/internal/incidents"
	"github.com/sentryvms/facecore/internal/metrics"
	"github.com/sentryvms/facecore/internal/policy"
	"github.com/sentryvms/facecore/internal/profiles"
	"github.com/sentryvms/facecore/internal/recognition"
	"github.com/sentryvms/facecore/internal/refresher"
	"github.com/sentryvms/facecore/internal/snapshot"
	"github.com/sentryvms/facecore/internal/snapshotcache"
	"github.com/sentryvms/facecore/internal/store/postgres"
	"github.com/sentryvms/facecore/internal/supervisor"
	"github.com/sentryvms/facecore/internal/topology"
)

func main() {
	configPath := getEnv("FACECORE_CONFIG_PATH", "config/default.yaml")

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		log.Fatalf("[recognition-worker] config load error: %v", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(rootCtx)
	cfg := watcher.Current()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("[recognition-worker] db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("[recognition-worker] db ping error: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)

	store := postgres.New(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Printf("[recognition-worker] NATS connection failed: %v (events will be dropped)", err)
		} else {
			defer natsConn.Close()
		}
	}
	publisher := events.New(natsConn)

	severity := incidents.SeverityTable{}
	for incidentType, name := range cfg.IncidentSeverity {
		severity[incidentType] = domain.IncidentSeverity(name)
	}
	incidentManager := incidents.New(store, publisher, severity)

	topologyService := topology.New(store, cfg.Topology.SameZoneIsNeighbor)
	if err := topologyService.LoadFromDatabase(rootCtx); err != nil {
		log.Printf("[recognition-worker] initial topology load failed: %v", err)
	}

	snapStore := snapshot.New()
	profileLoader := profiles.New(store)
	cache := snapshotcache.New(rdb, "facecore:snapshot", cfg.FaceProfileCache.PayloadTTL, cfg.FaceProfileCache.LockTTL)

	refresherCfg := refresher.Config{
		Interval:             cfg.FaceProfileCache.RefreshInterval,
		JitterFraction:       cfg.FaceProfileCache.JitterFraction,
		PreferDistributed:    cfg.FaceProfileCache.PreferDistributed,
		MaxStaleness:         cfg.FaceProfileCache.MaxStaleness,
		EmergencyRefresh:     cfg.FaceProfileCache.EmergencyRefresh,
		LoadTimeout:          20 * time.Second,
		FollowerRetryBackoff: 250 * time.Millisecond,
	}
	snapRefresher := refresher.New(profileLoader, cache, snapStore, refresherCfg).WithNotifier(publisher)
	snapRefresher.Start()
	defer snapRefresher.Stop()

	policyResolver := policy.New(store, cfg.FaceRecognition.DefaultThreshold)
	aiClient := aiclient.New(cfg.AIService.HTTPBaseURL, cfg.AIService.WSBaseURL)
	recognitionService := recognition.New(policyResolver, snapshotAdapter{store: snapStore}, aiClient, cfg.FaceRecognition.MinEmbeddingLength)

	autoEnrollSvc := autoenroll.New(store, snapStore, autoenroll.Config{
		MinInterval:             cfg.FaceRecognition.AutoEnrollMinInterval,
		MaxEmbeddingsPerProfile: cfg.FaceRecognition.MaxEmbeddingsPerProfile,
		MinVariationDistance:    cfg.FaceRecognition.MinVariationDistance,
	})
	go runAutoEnrollWorker(rootCtx, recognitionService, autoEnrollSvc)

	notifier := incidentNotifierAdapter{manager: incidentManager}
	cam := supervisor.New(aiClient, recognitionService, notifier, supervisor.Config{
		MaxRetry:    cfg.CameraSupervisor.MaxRetry,
		BaseDelay:   cfg.CameraSupervisor.BaseDelay,
		MaxDelay:    cfg.CameraSupervisor.MaxDelay,
		StopTimeout: cfg.CameraSupervisor.StopTimeout,
	})
	defer cam.Shutdown()

	if err := startActiveCameraSessions(rootCtx, store, cam); err != nil {
		log.Printf("[recognition-worker] initial camera session start failed: %v", err)
	}

	metricsServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metrics.Handler()}
	go func() {
		log.Printf("[recognition-worker] metrics listening on %s", cfg.Metrics.ListenAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[recognition-worker] metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("[recognition-worker] shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[recognition-worker] metrics server shutdown error: %v", err)
	}
}

// snapshotAdapter adapts *snapshot.Store's State-wrapped view to the flat
// []domain.FaceProfileSnapshot shape recognition.SnapshotSource expects.
type snapshotAdapter struct {
	store *snapshot.Store
}

func (a snapshotAdapter) Current() []domain.FaceProfileSnapshot {
	return a.store.Current().Profiles
}

// incidentNotifierAdapter turns a supervisor match into an automated
// incident creation, decoupling the supervisor from incidents' richer
// CreateRequest shape.
type incidentNotifierAdapter struct {
	manager *incidents.Manager
}

func (a incidentNotifierAdapter) NotifyMatch(cameraID int64, result domain.FaceMatchResult) {
	if !result.IsMatch {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.manager.Create(ctx, incidents.CreateRequest{
		Title:       "face match",
		Description: "automated face recognition match on supervised camera stream",
		Type:        "unknown_face",
		Source:      domain.SourceCamera,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		log.Printf("[recognition-worker] incident creation for camera %d match failed: %v", cameraID, err)
	}
}

func runAutoEnrollWorker(ctx context.Context, svc *recognition.Service, auto *autoenroll.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case candidate, ok := <-svc.AutoEnrollQueue():
			if !ok {
				return
			}
			owner := candidate.ProfileID
			auto.Consider(ctx, owner.UserID, owner.ProfileID, owner.Embeddings, candidate.Embedding)
		}
	}
}

func startActiveCameraSessions(ctx context.Context, store *postgres.Store, sup *supervisor.Supervisor) error {
	cameras, err := store.ListCameras(ctx)
	if err != nil {
		return err
	}
	for _, c := range cameras {
		if !c.IsActive || !c.Capabilities.Has(domain.CapabilityFace) {
			continue
		}
		sup.Start(c.ID, c.StreamURL)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
