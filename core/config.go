package core

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		DisableReqLogs     bool
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EnrollmentConfig struct {
		DefaultPageSize int
	}

	EmailConfig struct {
		SendgridAPIKey string
		FromName       string
		FromAddress    string
	}

	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string

		Server     ServerConfig
		Database   DatabaseConfig
		Enrollment EnrollmentConfig
		Email      EmailConfig
	}
)

// From returns the sender of outgoing emails.
func (c EmailConfig) From() mail.Address {
	return mail.Address{Name: c.FromName, Address: c.FromAddress}
}

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig reads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// Environment variables are prefixed by the current env, eg: `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	conf, err := loadConfig(os.Getenv("ENV"))
	if err != nil {
		panic(err)
	}
	return conf
}

func loadConfig(env string) (*Config, error) {
	v := viper.New()
	env = strings.ToUpper(env)
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Program Enrollments")
	v.SetDefault("secretKey", "z5k!n0e^d+w1x@r7-(kq6o$3j8m=2c&hbt#v9ypg4ua_fsl")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.jwtExpirationDelta", time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "enrollments")
	v.SetDefault("database.user", "enrollments")
	v.SetDefault("database.password", "enrollments")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("enrollment.defaultPageSize", 100)

	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.fromName", "Program Enrollments")
	v.SetDefault("email.fromAddress", "no-reply@enrollments.local")

	// load .env if it exists (ignore if it does not)
	if root, err := projectRoot(); err == nil {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
		}
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Enrollment: EnrollmentConfig{
			DefaultPageSize: v.GetInt("enrollment.defaultPageSize"),
		},
		Email: EmailConfig{
			SendgridAPIKey: v.GetString("email.sendgridApiKey"),
			FromName:       v.GetString("email.fromName"),
			FromAddress:    v.GetString("email.fromAddress"),
		},
	}, nil
}
