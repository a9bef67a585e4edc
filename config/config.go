package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Pools sizes the per-operation worker pools. Each batch operation fans out
// at most this many units at a time.
type Pools struct {
	// Launch bounds concurrent instance launches. Default: 10.
	Launch int `json:"launch" mapstructure:"launch"`
	// Install bounds concurrent SSH install sessions. Default: 20.
	Install int `json:"install" mapstructure:"install"`
	// Terminate bounds concurrent terminations. Default: 20.
	Terminate int `json:"terminate" mapstructure:"terminate"`
	// CredentialCheck bounds concurrent account health checks. Default: 20.
	CredentialCheck int `json:"credential_check" mapstructure:"credential_check"`
	// Status bounds concurrent per-(credential, region) status reads. Default: 50.
	Status int `json:"status" mapstructure:"status"`
	// Probe bounds concurrent deep-refresh SSH probes. Default: 10.
	Probe int `json:"probe" mapstructure:"probe"`
}

// Config holds global backend configuration.
type Config struct {
	// ListenAddr is the HTTP listen address. Env: DEPIN_LISTEN_ADDR. Default: :8080.
	ListenAddr string `json:"listen_addr" mapstructure:"listen_addr"`
	// AllowedOrigins is a comma-separated list of CORS origins.
	AllowedOrigins string `json:"allowed_origins" mapstructure:"allowed_origins"`

	// DBHost, DBPort, DBUser, DBPassword, DBName describe the MySQL record store.
	DBHost     string `json:"db_host" mapstructure:"db_host"`
	DBPort     string `json:"db_port" mapstructure:"db_port"`
	DBUser     string `json:"db_user" mapstructure:"db_user"`
	DBPassword string `json:"db_password" mapstructure:"db_password"`
	DBName     string `json:"db_name" mapstructure:"db_name"`

	// JWTSecret signs access tokens. Required.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret"`
	// EncryptionKey is the base64 fernet key protecting stored secrets. Required.
	EncryptionKey string `json:"encryption_key" mapstructure:"encryption_key"`

	// Regions is a comma-separated list of provider regions the dashboard
	// scans and launches into. Default: us-east-1,us-east-2,us-west-2,ap-northeast-1.
	Regions string `json:"regions" mapstructure:"regions"`

	// SSHUser is the login user on launched instances. Default: ec2-user.
	SSHUser string `json:"ssh_user" mapstructure:"ssh_user"`
	// SSHTimeoutSeconds is the connect timeout for probe sessions. Default: 10.
	SSHTimeoutSeconds int `json:"ssh_timeout_seconds" mapstructure:"ssh_timeout_seconds"`
	// InstallTimeoutSeconds bounds remote install script execution. Default: 600.
	InstallTimeoutSeconds int `json:"install_timeout_seconds" mapstructure:"install_timeout_seconds"`

	Pools Pools `json:"pools" mapstructure:"pools"`
}

// RegionList parses the Regions string into a slice of region codes.
func (c *Config) RegionList() []string {
	var regions []string
	for _, r := range strings.Split(c.Regions, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			regions = append(regions, r)
		}
	}
	return regions
}

// OriginList parses AllowedOrigins into a slice.
func (c *Config) OriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("db_host", "127.0.0.1")
	v.SetDefault("db_port", "3306")
	v.SetDefault("db_user", "depin")
	v.SetDefault("db_name", "depin")
	v.SetDefault("regions", "us-east-1,us-east-2,us-west-2,ap-northeast-1")
	v.SetDefault("ssh_user", "ec2-user")
	v.SetDefault("ssh_timeout_seconds", 10)
	v.SetDefault("install_timeout_seconds", 600)
	v.SetDefault("pools.launch", 10)
	v.SetDefault("pools.install", 20)
	v.SetDefault("pools.terminate", 20)
	v.SetDefault("pools.credential_check", 20)
	v.SetDefault("pools.status", 50)
	v.SetDefault("pools.probe", 10)
}

// Load reads configuration from the environment (DEPIN_ prefix) and an
// optional config file. A missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if conf.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (DEPIN_JWT_SECRET)")
	}
	if conf.EncryptionKey == "" {
		return nil, fmt.Errorf("encryption_key is required (DEPIN_ENCRYPTION_KEY)")
	}
	if conf.DBPassword == "" {
		return nil, fmt.Errorf("db_password is required (DEPIN_DB_PASSWORD)")
	}
	return conf, nil
}
