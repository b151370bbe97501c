// Package mysql provides MySQL connection options.
package mysql

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// PasswordEnv 用于读取 MySQL 密码的环境变量。
const PasswordEnv = "MYSQL_PASSWORD"

// Options defines configuration options for MySQL.
type Options struct {
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		Database:              "docqa",
		MaxIdleConnections:    10,
		MaxOpenConnections:    50,
		MaxConnectionLifeTime: 10 * time.Minute,
	}
}

// DSN builds username:password@tcp(host:port)/database?params.
// The password is escaped so characters like @ or / do not break parsing.
func (o *Options) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		o.Username, url.QueryEscape(o.Password), o.Host, o.Port, o.Database)
}

// AddFlags adds flags for MySQL options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mysql."
	fs.StringVar(&o.Host, p+"host", o.Host, "MySQL host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MySQL port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MySQL username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MySQL password (prefer the "+PasswordEnv+" env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "MySQL database.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "MySQL max idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "MySQL max open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "MySQL max connection life time.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Host == "" || o.Database == "" {
		errs = append(errs, fmt.Errorf("mysql.host and mysql.database are required"))
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
