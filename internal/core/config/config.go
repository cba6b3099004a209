package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

func (h HTTP) Addr() string { return fmt.Sprintf("%s:%d", h.Host, h.Port) }

type App struct {
	Name        string
	Env         string
	HTTP        HTTP
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

func (a App) Production() bool { return strings.EqualFold(a.Env, "production") }

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int `mapstructure:"maxSizeMB"`
	MaxBackups int `mapstructure:"maxBackups"`
	MaxAgeDays int `mapstructure:"maxAgeDays"`
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	AccessSecret         string `mapstructure:"accessSecret"`
	RefreshSecret        string `mapstructure:"refreshSecret"`
	Issuer               string
	AccessTokenTTLMin    int `mapstructure:"accessTokenTTLMin"`
	RefreshTokenTTLHours int `mapstructure:"refreshTokenTTLHours"`
}

func (j JWT) AccessTTL() time.Duration  { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) RefreshTTL() time.Duration { return time.Duration(j.RefreshTokenTTLHours) * time.Hour }

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// 书目详情缓存秒数
	BookTTLSec int `mapstructure:"bookTTLSec"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Limits struct {
	RPS           float64
	Burst         int
	MaxConcurrent int64 `mapstructure:"maxConcurrent"`
	MaxBodyBytes  int64 `mapstructure:"maxBodyBytes"`
	TimeoutSec    int   `mapstructure:"timeoutSec"`
	// 登录/注册/刷新：每个 IP 每分钟请求数
	AuthPerMinute int `mapstructure:"authPerMinute"`
}

type Library struct {
	DefaultLoanDays        int  `mapstructure:"defaultLoanDays"`
	SweepIntervalSec       int  `mapstructure:"sweepIntervalSec"`
	EnforceReturnOwnership bool `mapstructure:"enforceReturnOwnership"`
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Limits  Limits
	Library Library
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "library-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 3000)
	v.SetDefault("app.http.readTimeoutSec", 10)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.corsOrigins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.maxSizeMB", 100)
	v.SetDefault("log.file.maxBackups", 7)
	v.SetDefault("log.file.maxAgeDays", 30)

	// 空默认值也要登记，否则 AutomaticEnv 在 Unmarshal 时读不到
	v.SetDefault("jwt.accessSecret", "")
	v.SetDefault("jwt.refreshSecret", "")
	v.SetDefault("jwt.issuer", "library-api")
	v.SetDefault("jwt.accessTokenTTLMin", 60*24*7)
	v.SetDefault("jwt.refreshTokenTTLHours", 24*30)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:library.db")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.bookTTLSec", 300)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.maxConcurrent", 512)
	v.SetDefault("limits.maxBodyBytes", 1<<20)
	v.SetDefault("limits.timeoutSec", 15)
	v.SetDefault("limits.authPerMinute", 20)

	v.SetDefault("library.defaultLoanDays", 14)
	v.SetDefault("library.sweepIntervalSec", 3600)
	v.SetDefault("library.enforceReturnOwnership", false)
}

// Read 读取配置文件（可缺省）+ 环境变量 APP_*；.env 存在时先加载
func Read(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./configs/config.local.yaml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 文件不存在时只用默认值 + 环境变量
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return c
}

func (c *Config) validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.accessSecret and jwt.refreshSecret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.refreshSecret must differ from jwt.accessSecret")
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	return nil
}
