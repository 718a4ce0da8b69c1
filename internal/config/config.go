// Package config reads server settings from flags, falling back to
// CHORA_* environment variables and then to built-in defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/dukerupert/chora/internal/backup"
	"github.com/dukerupert/chora/internal/dateutil"
)

const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
)

type Config struct {
	Port      string
	Store     string
	DBPath    string
	LogLevel  string
	LogFormat string

	FirestoreProject     string
	FirestoreCredentials string

	MongoURI      string
	MongoDatabase string

	WeekStart  time.Weekday
	SessionTTL time.Duration

	// AllowedOrigins are host patterns accepted on websocket upgrades in
	// addition to the request's own host.
	AllowedOrigins []string

	Backup backup.Config
}

// Load parses args (without the program name). getenv supplies flag
// defaults; pass os.Getenv outside tests.
func Load(args []string, getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := getenv("CHORA_" + key); v != "" {
			return v
		}
		return def
	}

	var cfg Config
	var weekStart string
	var sessionTTL string
	var origins string
	var retention int

	fs := flag.NewFlagSet("chora", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Port, "port", env("PORT", "8080"), "HTTP listen port")
	fs.StringVar(&cfg.Store, "store", env("STORE", StoreSQLite), "document store: sqlite, firestore or mongo")
	fs.StringVar(&cfg.DBPath, "db", env("DB_PATH", "chora.db"), "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "text"), "log format: text or json")
	fs.StringVar(&cfg.FirestoreProject, "firestore-project", env("FIRESTORE_PROJECT", ""), "Firebase project id")
	fs.StringVar(&cfg.FirestoreCredentials, "firestore-credentials", env("FIRESTORE_CREDENTIALS", ""), "service account JSON file")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", env("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", env("MONGO_DB", "chora"), "MongoDB database name")
	fs.StringVar(&weekStart, "week-start", env("WEEK_START", "sunday"), "first day of the week")
	fs.StringVar(&sessionTTL, "session-ttl", env("SESSION_TTL", "720h"), "session lifetime")
	fs.StringVar(&origins, "allowed-origins", env("ALLOWED_ORIGINS", ""), "comma-separated origin host patterns for websockets")
	fs.StringVar(&cfg.Backup.S3.Endpoint, "s3-endpoint", env("S3_ENDPOINT", ""), "S3-compatible endpoint URL")
	fs.StringVar(&cfg.Backup.S3.Bucket, "s3-bucket", env("S3_BUCKET", ""), "backup bucket")
	fs.StringVar(&cfg.Backup.S3.Region, "s3-region", env("S3_REGION", "us-east-1"), "backup bucket region")
	fs.StringVar(&cfg.Backup.S3.AccessKey, "s3-access-key", env("S3_ACCESS_KEY", ""), "S3 access key")
	fs.StringVar(&cfg.Backup.S3.SecretKey, "s3-secret-key", env("S3_SECRET_KEY", ""), "S3 secret key")
	fs.IntVar(&retention, "backup-retention-days", envInt(getenv, "BACKUP_RETENTION_DAYS", 30), "delete archives older than this; 0 keeps all")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case StoreSQLite:
	case StoreFirestore:
		if cfg.FirestoreProject == "" {
			return Config{}, fmt.Errorf("firestore store needs --firestore-project or CHORA_FIRESTORE_PROJECT")
		}
	case StoreMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("mongo store needs --mongo-uri or CHORA_MONGO_URI")
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}

	wd, err := dateutil.ParseWeekday(weekStart)
	if err != nil {
		return Config{}, fmt.Errorf("week start: %w", err)
	}
	cfg.WeekStart = wd

	ttl, err := time.ParseDuration(sessionTTL)
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("invalid session ttl %q", sessionTTL)
	}
	cfg.SessionTTL = ttl

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if retention < 0 {
		return Config{}, fmt.Errorf("backup retention must not be negative")
	}
	cfg.Backup.RetentionDays = retention

	return cfg, nil
}

// FromEnvironment is Load over the process arguments and environment.
func FromEnvironment() (Config, error) {
	return Load(os.Args[1:], os.Getenv)
}

func envInt(getenv func(string) string, key string, def int) int {
	v := getenv("CHORA_" + key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
