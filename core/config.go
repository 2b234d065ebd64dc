package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		Env             string
		Build           string
		RollbarToken    string
		FrontendBaseURL string
		WorkDir         string
		SendgridApiKey  string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Paystack PaystackConfig
		Google   GoogleConfig
		Media    MediaConfig
		Tasks    TasksConfig
		Tracing  TracingConfig

		defaultFromEmail string
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		Name          string
		DisableTLS    bool
	}

	PaystackConfig struct {
		SecretKey   string
		BaseURL     string
		CallbackURL string
	}

	GoogleConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}

	MediaConfig struct {
		Root       string
		URL        string
		FFmpegPath string
	}

	TasksConfig struct {
		Workers           int
		QueueSize         int
		AnalyticsInterval time.Duration
	}

	TracingConfig struct {
		CollectorURL string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(conf.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// NewConfig loads the configuration of the current environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
// Values are read from `<ENV>_<KEY>` environment variables, optionally declared in `config/.env.<env>`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Acadamier")
	v.SetDefault("secretKey", "k2d8-r0w)acb$+19=zq&uoxh7(e!x)#*c5(#yg4h^$lms2emy")
	v.SetDefault("build", "develop")
	v.SetDefault("defaultFromEmail", "Acadamier <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "acadamier")
	v.SetDefault("database.password", "acadamier")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "acadamier")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("paystack.baseURL", "https://api.paystack.co")
	v.SetDefault("paystack.callbackURL", "http://localhost:3000/payments/callback")

	v.SetDefault("media.root", "media")
	v.SetDefault("media.url", "/media/")
	v.SetDefault("media.ffmpegPath", "ffmpeg")

	v.SetDefault("tasks.workers", 4)
	v.SetDefault("tasks.queueSize", 256)
	v.SetDefault("tasks.analyticsInterval", time.Hour)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	mediaRoot := v.GetString("media.root")
	if !filepath.IsAbs(mediaRoot) {
		mediaRoot = filepath.Join(workDir, mediaRoot)
	}

	return &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		Env:                       env,
		Build:                     v.GetString("build"),
		RollbarToken:              v.GetString("rollbarToken"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		WorkDir:                   workDir,
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Paystack: PaystackConfig{
			SecretKey:   v.GetString("paystack.secretKey"),
			BaseURL:     v.GetString("paystack.baseURL"),
			CallbackURL: v.GetString("paystack.callbackURL"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("google.clientID"),
			ClientSecret: v.GetString("google.clientSecret"),
			RedirectURL:  v.GetString("google.redirectURL"),
		},
		Media: MediaConfig{
			Root:       mediaRoot,
			URL:        v.GetString("media.url"),
			FFmpegPath: v.GetString("media.ffmpegPath"),
		},
		Tasks: TasksConfig{
			Workers:           v.GetInt("tasks.workers"),
			QueueSize:         v.GetInt("tasks.queueSize"),
			AnalyticsInterval: v.GetDuration("tasks.analyticsInterval"),
		},
		Tracing: TracingConfig{
			CollectorURL: v.GetString("tracing.collectorURL"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}
