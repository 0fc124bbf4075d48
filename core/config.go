package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// storage backends
const (
	DBEnginePostgres = "postgres"
	DBEngineMemory   = "memory"

	FileBackendLocal = "local"
	FileBackendB2    = "b2"
	FileBackendS3    = "s3"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MaxUploadSize             int64
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Backend   string
		LocalRoot string
		Bucket    string

		B2AccountID string
		B2AppKey    string

		S3Region    string
		S3Endpoint  string
		S3AccessKey string
		S3SecretKey string
	}

	QuizConfig struct {
		GraceWindow   time.Duration
		SweepSchedule string
		SweepTimeout  time.Duration
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Quiz     QuizConfig
	}
)

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// FromAddress parses DefaultFromEmail, falling back to the bare address on bad input.
func (c *Config) FromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "LearnHub")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "x9%k2-lh!t7w$+q3=rb&uoe4(p!z)#*d8(#ma5^$cfgn1vsw")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "LearnHub <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 15*time.Minute)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.maxUploadSize", int64(16<<20))

	v.SetDefault("database.engine", DBEnginePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "learnhub")
	v.SetDefault("database.user", "learnhub")
	v.SetDefault("database.password", "learnhub")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.backend", FileBackendLocal)
	v.SetDefault("storage.localRoot", "uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.b2AccountID", "")
	v.SetDefault("storage.b2AppKey", "")
	v.SetDefault("storage.s3Region", "us-east-1")
	v.SetDefault("storage.s3Endpoint", "")
	v.SetDefault("storage.s3AccessKey", "")
	v.SetDefault("storage.s3SecretKey", "")

	v.SetDefault("quiz.graceWindow", 10*time.Second)
	v.SetDefault("quiz.sweepSchedule", "@every 1m")
	v.SetDefault("quiz.sweepTimeout", 30*time.Second)
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file and
// env vars prefixed with the current env (eg: DEV_DATABASE_HOST, PROD_SECRETKEY).
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", DBEngineMemory)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          v.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			MaxUploadSize:             v.GetInt64("server.maxUploadSize"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Backend:     v.GetString("storage.backend"),
			LocalRoot:   v.GetString("storage.localRoot"),
			Bucket:      v.GetString("storage.bucket"),
			B2AccountID: v.GetString("storage.b2AccountID"),
			B2AppKey:    v.GetString("storage.b2AppKey"),
			S3Region:    v.GetString("storage.s3Region"),
			S3Endpoint:  v.GetString("storage.s3Endpoint"),
			S3AccessKey: v.GetString("storage.s3AccessKey"),
			S3SecretKey: v.GetString("storage.s3SecretKey"),
		},
		Quiz: QuizConfig{
			GraceWindow:   v.GetDuration("quiz.graceWindow"),
			SweepSchedule: v.GetString("quiz.sweepSchedule"),
			SweepTimeout:  v.GetDuration("quiz.sweepTimeout"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: no env lookups, in-memory DB & storage.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		WorkDir:                   Getwd(),
		SecretKey:                 fmt.Sprintf("test-%s", v.GetString("secretKey")),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          v.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			MaxUploadSize:             v.GetInt64("server.maxUploadSize"),
		},
		Database: DatabaseConfig{Engine: DBEngineMemory},
		Storage:  StorageConfig{Backend: FileBackendLocal},
		Quiz: QuizConfig{
			GraceWindow:   v.GetDuration("quiz.graceWindow"),
			SweepSchedule: v.GetString("quiz.sweepSchedule"),
			SweepTimeout:  v.GetDuration("quiz.sweepTimeout"),
		},
	}
}
