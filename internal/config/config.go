// Package config resolves server and client settings from defaults, a .env
// file, the environment and bound command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnitoahc/go-dotenv"
	"github.com/spf13/viper"
)

const (
	configDir   = ".filegate" // inside the user's home directory
	baseURLFile = "base_url"
	tokenFile   = "token"

	DefaultBaseURL = "http://localhost:3000"
)

// BackendConfig selects and configures the object store.
type BackendConfig struct {
	Driver    string // sqlite, libsql, s3, r2, minio, memory
	Source    string // DSN for sqlite/libsql
	Table     string
	Bucket    string
	Region    string
	Endpoint  string
	AccountID string
	AccessKey string
	SecretKey string
	PathStyle bool
	UseSSL    bool
	// CreateBucket lets the minio driver create a missing bucket.
	CreateBucket bool
}

// ServerConfig is everything `filegate serve` needs.
type ServerConfig struct {
	Port            int
	BasePath        string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	TokenHashes     []string
	Backend         BackendConfig
}

// ClientConfig is what the CLI needs to reach a gateway.
type ClientConfig struct {
	BaseURL string
	Token   string
}

// New returns a viper instance with .env loaded and all defaults set.
// Callers may bind flags on it before calling LoadServer or LoadClient.
func New() *viper.Viper {
	dotenv.Load(".env")

	v := viper.New()
	v.SetDefault("SERVER_PORT", 3000)
	v.SetDefault("SERVER_BASE_PATH", "")
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 500)
	v.SetDefault("SERVER_READ_TIMEOUT", "60s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10m")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("AUTH_TOKEN_HASHES", "")

	v.SetDefault("OBJECT_BACKEND_DRIVER", "sqlite")
	v.SetDefault("OBJECT_STORAGE_SOURCE", "file:object_storage.db?cache=shared")
	v.SetDefault("OBJECT_STORAGE_TABLE", "objects")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_PATH_STYLE", false)
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_CREATE_BUCKET", false)
	v.SetDefault("CF_ACCOUNT_ID", "")

	v.SetDefault("FILEGATE_URL", "")
	v.SetDefault("FILEGATE_TOKEN", "")

	v.AutomaticEnv()
	return v
}

// LoadServer reads a ServerConfig out of v.
func LoadServer(v *viper.Viper) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:            v.GetInt("SERVER_PORT"),
		BasePath:        normalizeBasePath(v.GetString("SERVER_BASE_PATH")),
		MaxUploadBytes:  v.GetInt64("SERVER_MAX_UPLOAD_MB") << 20,
		ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		TokenHashes:     splitList(v.GetString("AUTH_TOKEN_HASHES")),
		Backend: BackendConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("OBJECT_BACKEND_DRIVER"))),
			Source:       v.GetString("OBJECT_STORAGE_SOURCE"),
			Table:        v.GetString("OBJECT_STORAGE_TABLE"),
			Bucket:       v.GetString("S3_BUCKET"),
			Region:       v.GetString("S3_REGION"),
			Endpoint:     v.GetString("S3_ENDPOINT"),
			AccountID:    v.GetString("CF_ACCOUNT_ID"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			PathStyle:    v.GetBool("S3_PATH_STYLE"),
			UseSSL:       v.GetBool("S3_USE_SSL"),
			CreateBucket: v.GetBool("S3_CREATE_BUCKET"),
		},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("config: invalid SERVER_PORT %d", cfg.Port)
	}
	if cfg.MaxUploadBytes <= 0 {
		return ServerConfig{}, fmt.Errorf("config: SERVER_MAX_UPLOAD_MB must be positive")
	}
	return cfg, nil
}

// LoadClient resolves the gateway URL and capability token. The URL comes from
// FILEGATE_URL (or a bound --url flag), then ~/.filegate/base_url, then the default.
func LoadClient(v *viper.Viper) (ClientConfig, error) {
	base := strings.TrimSpace(v.GetString("FILEGATE_URL"))
	if base == "" {
		if stored, err := readConfigFile(baseURLFile); err == nil {
			base = stored
		}
	}
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return ClientConfig{}, fmt.Errorf("config: invalid gateway URL %q: %w", base, err)
	}

	token := strings.TrimSpace(v.GetString("FILEGATE_TOKEN"))
	if token == "" {
		token, _ = ReadToken()
	}
	return ClientConfig{BaseURL: base, Token: token}, nil
}

// ReadToken returns the stored capability token, or "" when none is stored.
func ReadToken() (string, error) {
	token, err := readConfigFile(tokenFile)
	if os.IsNotExist(err) {
		return "", nil
	}
	return token, err
}

// WriteToken stores the capability token with owner-only permissions.
func WriteToken(token string) error {
	p, err := configPath(tokenFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token), 0o600)
}

// RemoveToken clears the stored token.
func RemoveToken() error {
	return WriteToken("")
}

func configPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, name), nil
}

func readConfigFile(name string) (string, error) {
	p, err := configPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	s := strings.ReplaceAll(string(data), "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s), nil
}

func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
