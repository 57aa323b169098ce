package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      App      `yaml:"app"`
	Database Database `yaml:"database"`
	Gateway  Gateway  `yaml:"gateway"`
	Allows   Allows   `yaml:"allows"`
}

type App struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

type Database struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	Name string `yaml:"name"`
}

// Gateway holds provider and webhook settings for the messaging gateway.
type Gateway struct {
	// PublicBaseURL is the externally reachable base of this gateway,
	// used to build the inbound webhook URL.
	PublicBaseURL string `yaml:"public_base_url"`
	// DefaultProvider selects the backend for organizations without an
	// Integration row (internal, zapi, megazap).
	DefaultProvider string `yaml:"default_provider"`
	// FallbackClientToken is the deployment-wide last-resort token used
	// when neither data model resolves one.
	FallbackClientToken string `yaml:"fallback_client_token"`
	// StrictNumbers enables the CheckOnWhatsApp pre-flight before sends.
	StrictNumbers bool `yaml:"strict_numbers"`
	// HTTPTimeoutSeconds bounds every outbound provider call.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
	// MediaMaxBytes caps remote media downloads for inline re-encoding.
	MediaMaxBytes int64 `yaml:"media_max_bytes"`

	Internal InternalProvider `yaml:"internal"`
	ZAPI     CloudProvider    `yaml:"zapi"`
	Megazap  CloudProvider    `yaml:"megazap"`
}

// InternalProvider configures the self-hosted multi-tenant backend.
// BaseURL and AdminToken act as deployment defaults; the credential
// registry can override them per organization.
type InternalProvider struct {
	BaseURL    string `yaml:"base_url"`
	AdminToken string `yaml:"admin_token"`
}

type CloudProvider struct {
	BaseURL string `yaml:"base_url"`
}

type Allows struct {
	Methods []string `yaml:"methods"`
	Origins []string `yaml:"origins"`
	Headers []string `yaml:"headers"`
}

func InitConfig() *Config {
	var configs Config
	file_name, _ := filepath.Abs("./config.yaml")
	yaml_file, _ := os.ReadFile(file_name)
	yaml.Unmarshal(yaml_file, &configs)

	// Override with environment variables if they exist (for Docker)
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		configs.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		configs.Database.Port = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		configs.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		configs.Database.Pass = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		configs.Database.Name = dbName
	}

	if appHost := os.Getenv("APP_HOST"); appHost != "" {
		configs.App.Host = appHost
	}
	if appPort := os.Getenv("APP_PORT"); appPort != "" {
		configs.App.Port = appPort
	}
	if appName := os.Getenv("APP_NAME"); appName != "" {
		configs.App.Name = appName
	}

	if base := os.Getenv("GATEWAY_PUBLIC_BASE_URL"); base != "" {
		configs.Gateway.PublicBaseURL = base
	}
	if prov := os.Getenv("GATEWAY_DEFAULT_PROVIDER"); prov != "" {
		configs.Gateway.DefaultProvider = prov
	}
	if token := os.Getenv("GATEWAY_FALLBACK_CLIENT_TOKEN"); token != "" {
		configs.Gateway.FallbackClientToken = token
	}
	if strict := os.Getenv("GATEWAY_STRICT_NUMBERS"); strict != "" {
		configs.Gateway.StrictNumbers, _ = strconv.ParseBool(strict)
	}
	if base := os.Getenv("INTERNAL_PROVIDER_BASE_URL"); base != "" {
		configs.Gateway.Internal.BaseURL = base
	}
	if token := os.Getenv("INTERNAL_PROVIDER_ADMIN_TOKEN"); token != "" {
		configs.Gateway.Internal.AdminToken = token
	}

	configs.Gateway.applyDefaults()

	return &configs
}

func (g *Gateway) applyDefaults() {
	if g.DefaultProvider == "" {
		g.DefaultProvider = "internal"
	}
	if g.HTTPTimeoutSeconds <= 0 {
		g.HTTPTimeoutSeconds = 15
	}
	if g.MediaMaxBytes <= 0 {
		g.MediaMaxBytes = 10 << 20
	}
}
