package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = ":3000"
	DefaultSiteName   = "Warden"
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	TablePrefix     string `mapstructure:"tablePrefix"`
	ReplicaDsn      string `mapstructure:"replicaDsn"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

// SecurityConfig carries the engine secrets. IdentityHashKey must stay
// stable across deployments (erasure-by-hash depends on it); IPHashSecret
// seeds the daily-rotating IP salt and must differ from the identity key.
type SecurityConfig struct {
	IdentityHashKey   string   `mapstructure:"identityHashKey"`
	IPHashSecret      string   `mapstructure:"ipHashSecret"`
	VerifyTokenSecret string   `mapstructure:"verifyTokenSecret"`
	CSRFExcludePaths  []string `mapstructure:"csrfExcludePaths"`
}

type Config struct {
	Debug        bool           `mapstructure:"debug"`
	Production   bool           `mapstructure:"production"`
	SiteName     string         `mapstructure:"siteName"`
	BaseURL      string         `mapstructure:"baseURL"`
	ListenAddr   string         `mapstructure:"listenAddr"`
	TemplateDir  string         `mapstructure:"templateDir"`
	AllowOrigins []string       `mapstructure:"allowOrigins"`
	Redis        RedisConfig    `mapstructure:"redis"`
	MySQL        MySQLConfig    `mapstructure:"mysql"`
	Mail         MailConfig     `mapstructure:"mail"`
	Security     SecurityConfig `mapstructure:"security"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.SiteName == "" {
		c.SiteName = DefaultSiteName
	}
	if c.Security.IdentityHashKey == "" || c.Security.IPHashSecret == "" {
		return fmt.Errorf("security.identityHashKey and security.ipHashSecret must be set")
	}
	if c.Security.IdentityHashKey == c.Security.IPHashSecret {
		return fmt.Errorf("security.identityHashKey and security.ipHashSecret must differ")
	}
	if c.Security.VerifyTokenSecret == "" {
		return fmt.Errorf("security.verifyTokenSecret must be set")
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
