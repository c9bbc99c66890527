package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	RoutePrefix     string
	PublicBaseURL   string
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	Name               string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Reset 找回密码令牌
type Reset struct {
	TokenTTLMin int
	MaxRequests int
	WindowMin   int
}

type Limits struct {
	RPS          float64
	Burst        int
	PerIPRps     float64
	PerIPBurst   int
	Concurrency  int64
	MaxBodyBytes int64
	TimeoutSec   int
}

type CORS struct {
	AllowOrigins []string
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	DB     DB
	Redis  Redis `mapstructure:"redis"`
	Reset  Reset
	Limits Limits
	CORS   CORS
}

var Drivers = []string{"postgres", "mysql", "sqlite", "mongodb"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "account-service")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 5000)
	v.SetDefault("app.http.readTimeoutSec", 15)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.http.routePrefix", "/api/auth")
	v.SetDefault("app.http.publicBaseURL", "http://localhost:5000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "./logs/app.log")
	v.SetDefault("log.file.maxSizeMB", 100)
	v.SetDefault("log.file.maxBackups", 7)
	v.SetDefault("log.file.maxAgeDays", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.issuer", "account-service")
	v.SetDefault("jwt.accessTokenTTLMin", 60)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.name", "users")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", false)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("reset.tokenTTLMin", 60)
	v.SetDefault("reset.maxRequests", 5)
	v.SetDefault("reset.windowMin", 15)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.perIPRps", 10)
	v.SetDefault("limits.perIPBurst", 20)
	v.SetDefault("limits.concurrency", 256)
	v.SetDefault("limits.maxBodyBytes", 1<<20)
	v.SetDefault("limits.timeoutSec", 10)

	v.SetDefault("cors.allowOrigins", []string{"*"})
}

// Load 读取 YAML + 环境变量。path 为空时依次取 CONFIG_PATH、默认路径；
// 只有显式指定的配置文件缺失才报错。
func Load(path string) (*Config, error) {
	v := viper.New()
	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容旧部署的环境变量名
	_ = v.BindEnv("app.http.port", "APP_APP_HTTP_PORT", "PORT")
	_ = v.BindEnv("db.dsn", "APP_DB_DSN", "DATABASE_URL", "MONGODB_URI")

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// MONGODB_URI 隐含文档库
	if os.Getenv("MONGODB_URI") != "" && os.Getenv("APP_DB_DRIVER") == "" && !v.InConfig("db.driver") {
		c.DB.Driver = "mongodb"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	ok := false
	for _, d := range Drivers {
		if c.DB.Driver == d {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("config: db.driver %q not in %v", c.DB.Driver, Drivers)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("config: db.dsn is required (APP_DB_DSN / DATABASE_URL / MONGODB_URI)")
	}
	if c.App.HTTP.Port <= 0 || c.App.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid app.http.port %d", c.App.HTTP.Port)
	}
	if c.App.HTTP.RoutePrefix != "" && !strings.HasPrefix(c.App.HTTP.RoutePrefix, "/") {
		c.App.HTTP.RoutePrefix = "/" + c.App.HTTP.RoutePrefix
	}
	c.App.HTTP.RoutePrefix = strings.TrimSuffix(c.App.HTTP.RoutePrefix, "/")
	c.App.HTTP.PublicBaseURL = strings.TrimSuffix(c.App.HTTP.PublicBaseURL, "/")
	return nil
}

func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}
