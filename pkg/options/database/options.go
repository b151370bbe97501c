// Package database selects and configures the document metadata database.
package database

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
	mysqlopts "github.com/kart-io/docqa/pkg/options/mysql"
	postgresopts "github.com/kart-io/docqa/pkg/options/postgres"
)

var _ options.IOptions = (*Options)(nil)

// 支持的驱动
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Options 文档元数据库配置。
type Options struct {
	// Driver sqlite, mysql 或 postgres。
	Driver string `json:"driver" mapstructure:"driver"`

	// SQLitePath sqlite 数据库文件路径，":memory:" 表示内存库。
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`

	// SlowThreshold 慢查询日志阈值。
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`

	// LogLevel GORM 日志级别：1 silent, 2 error, 3 warn, 4 info。
	LogLevel int `json:"log-level" mapstructure:"log-level"`

	MySQL    *mysqlopts.Options    `json:"mysql" mapstructure:"mysql"`
	Postgres *postgresopts.Options `json:"postgres" mapstructure:"postgres"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Driver:        DriverSQLite,
		SQLitePath:    "docqa.db",
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      2,
		MySQL:         mysqlopts.NewOptions(),
		Postgres:      postgresopts.NewOptions(),
	}
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "database."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Document metadata database driver (sqlite, mysql, postgres).")
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "SQLite database file.")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Slow query log threshold.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info).")
	o.MySQL.AddFlags(fs, append(prefixes, "database")...)
	o.Postgres.AddFlags(fs, append(prefixes, "database")...)
}

// Validate validates the database options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	switch o.Driver {
	case DriverSQLite:
		if o.SQLitePath == "" {
			return []error{fmt.Errorf("database.sqlite-path is required for sqlite")}
		}
		return nil
	case DriverMySQL:
		return o.MySQL.Validate()
	case DriverPostgres:
		return o.Postgres.Validate()
	default:
		return []error{fmt.Errorf("database.driver %q is not supported", o.Driver)}
	}
}

// Complete completes the nested driver options.
func (o *Options) Complete() error {
	if err := o.MySQL.Complete(); err != nil {
		return err
	}
	return o.Postgres.Complete()
}
