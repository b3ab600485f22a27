package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveMongo    = "mongo"
)

var InstanceId string

// Config is the process configuration read from the environment.
type Config struct {
	Port              string
	RateLimit         int // requests per minute per IP
	DrawInterval      time.Duration
	BroadcastInterval time.Duration
	AllowedOrigins    []string
	NatsUrl           string
	NatsToken         string
	ArchiveBackend    string
	PostgresUrl       string
	MongoUri          string
	LogLevel          string
	LogToFile         bool
}

// LoadEnv loads ./.env when present. Real environment variables win.
func LoadEnv(service string) {
	log.Infof("%s service configuration and env variables loading started ...", service)
	if err := godotenv.Load("./.env"); err != nil {
		log.Warnf("no .env file loaded, using process environment: %v", err)
		return
	}

	log.Info(".env file loaded.")
}

// Load reads Config from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("BINGO_SERVICE_PORT", "8080"),
		NatsUrl:        os.Getenv("NATS_URL"),
		NatsToken:      os.Getenv("NATS_TOKEN"),
		ArchiveBackend: strings.ToLower(getEnv("ARCHIVE_BACKEND", ArchiveNone)),
		PostgresUrl:    os.Getenv("POSTGRES_URL"),
		MongoUri:       os.Getenv("MONGODB_URI"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: []string{"http://localhost:5173"},
	}

	var err error
	if cfg.RateLimit, err = strconv.Atoi(getEnv("RATE_LIMIT", "300")); err != nil {
		return cfg, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("invalid RATE_LIMIT: must be positive, got %d", cfg.RateLimit)
	}
	if cfg.DrawInterval, err = parseDuration("DRAW_INTERVAL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.BroadcastInterval, err = parseDuration("BROADCAST_INTERVAL", 100*time.Millisecond); err != nil {
		return cfg, err
	}
	if v := os.Getenv("LOG_TO_FILE"); v != "" {
		if cfg.LogToFile, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("invalid LOG_TO_FILE: %w", err)
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	switch cfg.ArchiveBackend {
	case ArchiveNone:
	case ArchivePostgres:
		if cfg.PostgresUrl == "" {
			return cfg, fmt.Errorf("ARCHIVE_BACKEND=postgres requires POSTGRES_URL")
		}
	case ArchiveMongo:
		if cfg.MongoUri == "" {
			return cfg, fmt.Errorf("ARCHIVE_BACKEND=mongo requires MONGODB_URI")
		}
	default:
		return cfg, fmt.Errorf("unknown ARCHIVE_BACKEND %q", cfg.ArchiveBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// parseDuration accepts Go durations ("250ms") or plain milliseconds ("250").
func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		ms, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func CreateUniqueInstance(service string) string {
	id, err := uuid.NewV4() // instance identifier
	if err != nil {
		log.Errorf("error generating instanceId: %s", err)
		os.Exit(1)
	}
	InstanceId = id.String()
	log.Infof(service+" service with Instance ID: %s is ready", id)
	return id.String()
}

func GetInstanceId() string {
	return InstanceId
}

func CORS(allowedOrigins []string) *cors.Cors {
	corsOptions := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return corsOptions
}

// Logging sets the logrus level and, when toFile is set, redirects output
// to .l_g/<service>.log.
func Logging(service, level string, toFile bool) {
	log.SetFormatter(&log.TextFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if !toFile {
		return
	}

	logFolder := ".l_g"

	_, err = os.Stat(logFolder)
	if os.IsNotExist(err) {
		err = os.Mkdir(logFolder, 0755)
		if err != nil {
			log.Warnf("unable to create folder for log %s", err)
			return
		}
	}

	logFilePath := filepath.Join(logFolder, service+".log")

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}

	log.SetOutput(file)

	log.Infof("log to file started for service: %s", service)
}

func CustomLoggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.WithField("request_id", middleware.GetReqID(r.Context())).Infof("%s %s %s %d %s %s",
					r.Method,
					r.RequestURI,
					r.RemoteAddr,
					ww.Status(),
					http.StatusText(ww.Status()),
					time.Since(start),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
