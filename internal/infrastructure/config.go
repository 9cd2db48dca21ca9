package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "GOAPP"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`     // ambient request timeout
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout" yaml:"session_timeout"`
	SessionRefresh time.Duration `mapstructure:"session_refresh" json:"session_refresh" yaml:"session_refresh"` // session refresh threshold
	Database       struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=postgres sqlite"`      // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host" validate:"required_if=Driver postgres"`     // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                  // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                            // server port
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                         // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema" validate:"required_if=Driver postgres"` // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username" validate:"required_if=Driver postgres"`
		Path     string `mapstructure:"path" json:"path" yaml:"path" validate:"required_if=Driver sqlite"` // sqlite database file
		Migrate  bool   `mapstructure:"migrate" json:"migrate" yaml:"migrate"`                             // create tables on start
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength  int    `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated ID for entities
		JWTMethod string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS512"`
		JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"`
		TokenName string `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"` // jwt token name set in cookie
	} `mapstructure:"security" json:"security" yaml:"security"`
	Certificate struct {
		Secret        string `mapstructure:"secret" json:"secret" yaml:"secret" validate:"required"`                       // verification code key
		NumberRetries int    `mapstructure:"number_retries" json:"number_retries" yaml:"number_retries" validate:"min=1"` // attempts on number collision
	} `mapstructure:"certificate" json:"certificate" yaml:"certificate"`
	RateLimit struct {
		VerifyLimit  int64         `mapstructure:"verify_limit" json:"verify_limit" yaml:"verify_limit" validate:"min=1"` // requests per window
		VerifyWindow time.Duration `mapstructure:"verify_window" json:"verify_window" yaml:"verify_window"`
	} `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`             // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`             // bind listen port
		Password string `mapstructure:"password" json:"password" yaml:"password"` // password for security reasons
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// .env is optional, real environment variables take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "progress-engine", "application identifier")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "request timeout(m, s and h units are supported), eg.30s")
	pflag.Duration("session_timeout", 30*time.Minute, "JWT lifetime(m, s and h units are supported), eg.30m")
	pflag.Duration("session_refresh", 5*time.Minute, "session refresh threshold(m, s and h units are supported), eg.5m")

	// database
	pflag.String("database.driver", "postgres", "database driver to use, can be 'postgres' or 'sqlite'")
	pflag.String("database.host", "127.0.0.1", "database host")
	pflag.Int("database.port", 5432, "database server port")
	pflag.String("database.username", "", "database username (required by postgres)")
	pflag.String("database.password", "", "database password")
	pflag.String("database.schema", "", "database schema (required by postgres)")
	pflag.String("database.query", "", "additional DSN query parameters('?' is auto prefixed)")
	pflag.String("database.path", "", "database file (required by sqlite)")
	pflag.Bool("database.migrate", false, "create missing tables on start")
	pflag.Int32("database.maxconn", 50, `max connection count, if you encounter a "too many connections" error, please consider
increasing the max_connection value of your db server, or lower this value`)

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 21, "set length of generated ID for entities")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used for JWT auth")
	pflag.String("security.jwt_secret", "", "JWT secret (required)")
	pflag.String("security.token_name", "token", "cookie name to store the token")

	// certificate
	pflag.String("certificate.secret", "", "key of certificate verification codes (required)")
	pflag.Int("certificate.number_retries", 3, "attempts to allocate a unique certificate number")

	// rate limit
	pflag.Int64("rate_limit.verify_limit", 30, "certificate verification requests allowed per window and client")
	pflag.Duration("rate_limit.verify_window", time.Minute, "certificate verification rate limit window")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required", "required_if":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "min":
			msg = append(msg, fmt.Sprintf("%s must be at least %s", fieldName, field.Param()))
		default:
			msg = append(msg, fmt.Sprintf("%s is invalid", fieldName))
		}
	}
	return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
}
