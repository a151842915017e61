package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	Database   Database   `yaml:"database"`
	PGSQL      PQSQL      `yaml:"pgsql"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	Blob       Blob       `yaml:"blob"`
	MinIO      MinIO      `yaml:"minio"`
	Upload     Upload     `yaml:"upload"`
	Auth       Auth       `yaml:"auth"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Janitor    Janitor    `yaml:"janitor"`
	HTTPServer HTTPServer `yaml:"http_server" env-required:"true"`
}

type HTTPServer struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:5000"`
}

// Database selects the photo record store: "postgres", "mongo" or "memory".
type Database struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
}

type PQSQL struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-default:"postgres"`
	Password string `yaml:"password" env:"PG_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env-default:"alumni_db"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Mongo struct {
	URI        string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database   string `yaml:"database" env-default:"alumni"`
	Collection string `yaml:"collection" env-default:"galleryphotos"`
}

// Redis is optional. An empty address disables the album cache and
// upload rate limiting.
type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// Blob selects where image bytes live: "fs" or "minio".
type Blob struct {
	Driver string `yaml:"driver" env:"BLOB_DRIVER" env-default:"fs"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_KEY"`
	BucketName      string `yaml:"bucket_name" env-default:"gallery"`
	UseSSL          bool   `yaml:"use_ssl" env-default:"false"`
}

type Upload struct {
	Dir            string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	MaxFileSize    int64  `yaml:"max_file_size" env-default:"10485760"`
	MaxFiles       int    `yaml:"max_files" env-default:"50"`
	CaptionsFile   bool   `yaml:"captions_file" env-default:"true"`
	ServeBlobFiles bool   `yaml:"serve_blob_files" env-default:"true"`
}

// Auth verifies tokens issued by the user service. An empty secret leaves
// the admin routes open, which is only meant for local development.
type Auth struct {
	JWTSecret  string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	AdminRoles []string `yaml:"admin_roles" env-default:"Admin"`
}

// RateLimit keys anonymous callers on the remote address. Set
// TrustForwardedFor only behind a proxy that overwrites X-Forwarded-For.
type RateLimit struct {
	UploadPerMinute   int64 `yaml:"upload_per_minute" env-default:"20"`
	TrustForwardedFor bool  `yaml:"trust_forwarded_for" env-default:"false"`
}

// Janitor reconciles blobs with records. Blobs younger than MinAge are
// skipped so in-flight uploads are never treated as orphans.
type Janitor struct {
	Schedule      string        `yaml:"schedule" env-default:"@every 48h"`
	RemoveOrphans bool          `yaml:"remove_orphans" env-default:"false"`
	MinAge        time.Duration `yaml:"min_age" env-default:"1h"`
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}

// IsAdminRole reports whether role is one of the configured admin roles.
func (a Auth) IsAdminRole(role string) bool {
	for _, r := range a.AdminRoles {
		if r == role {
			return true
		}
	}
	return false
}
