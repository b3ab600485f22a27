package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/archive"
	"github.com/avvvet/bingo-rooms/internal/db"
	"github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/room"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/routes"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/ws"
	"github.com/avvvet/bingo-rooms/internal/store"
)

const SERVICE_NAME = "bingo"

func main() {
	config.LoadEnv(SERVICE_NAME)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: invalid configuration %v", err)
	}

	instanceId := config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME+"_service_"+instanceId[:8], cfg.LogLevel, cfg.LogToFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// websocket gateway doubles as the room notifier
	s := ws.NewWs()

	roomCfg := room.Config{
		DrawInterval: cfg.DrawInterval,
		Notifier:     s,
		InstanceId:   instanceId,
	}

	archiveDone := make(chan struct{})
	if a := setupArchive(cfg); a != nil {
		roomCfg.Recorder = a
		go func() {
			defer close(archiveDone)
			a.Run(ctx)
		}()
	} else {
		close(archiveDone)
	}

	registry := room.NewRegistry(roomCfg)
	s.Registry = registry

	// optional event mirror
	if cfg.NatsUrl != "" {
		n, err := nats.Connect(cfg.NatsUrl, cfg.NatsToken)
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b := broker.NewBroker(n.Conn)
		s.Broker = b
		go b.Run(ctx)
	}

	go room.NewBroadcastLoop(registry, cfg.BroadcastInterval).Run(ctx)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.AllowedOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Initialize routes
	routes.SetRoutes(r, s, cfg.Port)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}

	// stop draw timers before the archive and broker drain
	registry.Close()
	cancel()
	<-archiveDone
	db.ClosePool()

	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// setupArchive connects the configured archive backend, or returns nil when disabled.
func setupArchive(cfg config.Config) *archive.Archiver {
	switch cfg.ArchiveBackend {
	case config.ArchivePostgres:
		pool, err := db.Connect(cfg.PostgresUrl)
		if err != nil {
			log.Fatalf("Error: unable to connect to postgres %v", err)
		}
		st := store.NewGameStore(pool)
		if err := st.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Error: %v", err)
		}
		log.Info("archiving finished games to postgres")
		return archive.NewArchiver(st)

	case config.ArchiveMongo:
		database, err := db.ConnectToDB(cfg.MongoUri)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		st := store.NewMongoGameStore(database)
		if err := st.EnsureIndexes(context.Background()); err != nil {
			log.Warnf("%v", err)
		}
		log.Infof("archiving finished games to mongo database %s", database.Name())
		return archive.NewArchiver(st)
	}
	return nil
}
