// Package pool provides worker pool options for background ingestion.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 异步入库 worker 池配置。
type Options struct {
	// Size 并发入库任务数上限。
	Size int `json:"size" mapstructure:"size"`

	// ExpiryDuration 空闲 worker 回收时间。
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`

	// Nonblocking 池满时立即拒绝而非排队。
	Nonblocking bool `json:"nonblocking" mapstructure:"nonblocking"`

	// MaxQueued 阻塞模式下的最大排队数。
	MaxQueued int `json:"max-queued" mapstructure:"max-queued"`

	// JobTimeout 单个异步入库任务的超时时间。
	JobTimeout time.Duration `json:"job-timeout" mapstructure:"job-timeout"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Size:           4,
		ExpiryDuration: 30 * time.Second,
		Nonblocking:    false,
		MaxQueued:      64,
		JobTimeout:     10 * time.Minute,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Size, p+"size", o.Size, "Maximum concurrent background ingestions.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Reject background ingestions when the pool is full.")
	fs.IntVar(&o.MaxQueued, p+"max-queued", o.MaxQueued, "Maximum queued background ingestions in blocking mode.")
	fs.DurationVar(&o.JobTimeout, p+"job-timeout", o.JobTimeout, "Timeout of one background ingestion.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Size <= 0 {
		errs = append(errs, fmt.Errorf("pool.size must be positive"))
	}
	if o.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pool.job-timeout must be positive"))
	}
	if err := o.Config().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Config 转换为 pool.Config。
func (o *Options) Config() *pool.Config {
	return &pool.Config{
		Capacity:         o.Size,
		ExpiryDuration:   o.ExpiryDuration,
		Nonblocking:      o.Nonblocking,
		MaxBlockingTasks: o.MaxQueued,
	}
}
