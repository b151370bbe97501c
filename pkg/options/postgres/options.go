// Package postgres provides PostgreSQL connection options.
package postgres

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// PasswordEnv 用于读取 PostgreSQL 密码的环境变量。
const PasswordEnv = "POSTGRES_PASSWORD"

// Options defines configuration options for PostgreSQL.
type Options struct {
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		Database:              "docqa",
		SSLMode:               "disable",
		MaxIdleConnections:    10,
		MaxOpenConnections:    50,
		MaxConnectionLifeTime: 10 * time.Minute,
	}
}

// DSN builds a key=value connection string.
func (o *Options) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, o.Port, o.Username, quote(o.Password), o.Database, o.SSLMode)
}

// quote 对含空格、引号或反斜杠的值加单引号并转义。
func quote(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return "'" + escaped + "'"
}

// AddFlags adds flags for PostgreSQL options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "postgres."
	fs.StringVar(&o.Host, p+"host", o.Host, "PostgreSQL host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "PostgreSQL port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "PostgreSQL username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "PostgreSQL password (prefer the "+PasswordEnv+" env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "PostgreSQL database.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "PostgreSQL max idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "PostgreSQL max open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "PostgreSQL max connection life time.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Host == "" || o.Database == "" {
		errs = append(errs, fmt.Errorf("postgres.host and postgres.database are required"))
	}
	switch o.SSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		errs = append(errs, fmt.Errorf("postgres.ssl-mode %q is invalid", o.SSLMode))
	}
	return errs
}

// Complete 在未通过参数提供密码时从环境变量读取。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}
