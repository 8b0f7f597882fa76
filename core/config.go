package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	databaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	membersConfig struct {
		DefaultRole       string
		RegistrationRole  string
		BirthYearSpan     int
		AdminUpdateURLFmt string
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		defaultFromName    string
		defaultFromAddress string

		Server   serverConfig
		Database databaseConfig
		Members  membersConfig
	}
)

func (c databaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.defaultFromName, Address: c.defaultFromAddress}
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the upper-cased env name, e.g. `DEV_DATABASE_HOST`.
func NewConfig() *Config {
	conf := viper.New()

	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "TroopConnect")
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "8v!k3q-zu^t2w$9e)nrb+7l#x0(hc&y4p@m5df6sa*g1jo")
	conf.SetDefault("frontendBaseURL", "http://localhost:8080")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("email.defaultFromName", "TroopConnect")
	conf.SetDefault("email.defaultFromAddress", "noreply@localhost")

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "troopconnect")
	conf.SetDefault("database.user", "troopconnect")
	conf.SetDefault("database.password", "troopconnect")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.path", "troopconnect.db")

	conf.SetDefault("members.defaultRole", "new")
	conf.SetDefault("members.registrationRole", "registration_admin")
	conf.SetDefault("members.birthYearSpan", 20)
	conf.SetDefault("members.adminUpdateURLFmt", "%s/members/%s/update")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:                   conf.GetString("appName"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimSuffix(conf.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:            conf.GetString("sendgridApiKey"),
		RollbarToken:              conf.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		defaultFromName:           conf.GetString("email.defaultFromName"),
		defaultFromAddress:        conf.GetString("email.defaultFromAddress"),
		Server: serverConfig{
			Host:            conf.GetString("server.host"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		Database: databaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			Path:          conf.GetString("database.path"),
		},
		Members: membersConfig{
			DefaultRole:       conf.GetString("members.defaultRole"),
			RegistrationRole:  conf.GetString("members.registrationRole"),
			BirthYearSpan:     conf.GetInt("members.birthYearSpan"),
			AdminUpdateURLFmt: conf.GetString("members.adminUpdateURLFmt"),
		},
	}
}

// configDir returns $CONFIG_DIR, defaulting to `config` in the working directory.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return filepath.Join(wd, "config")
}
