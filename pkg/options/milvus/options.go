// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Enabled selects Milvus as the vector index. The in-memory index is used otherwise.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"-" mapstructure:"password"`

	// Collection holds the chunk vectors.
	Collection string `json:"collection" mapstructure:"collection"`

	// NList is the IVF_FLAT cluster count.
	NList int `json:"nlist" mapstructure:"nlist"`

	// NProbe is the number of clusters searched per query.
	NProbe int `json:"nprobe" mapstructure:"nprobe"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:    "localhost:19530",
		Database:   "default",
		Collection: "docqa_chunks",
		NList:      128,
		NProbe:     16,
		Timeout:    30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Use Milvus as the vector index instead of the in-memory index.")
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password for authentication.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Milvus collection holding chunk vectors.")
	fs.IntVar(&o.NList, p+"nlist", o.NList, "IVF_FLAT nlist.")
	fs.IntVar(&o.NProbe, p+"nprobe", o.NProbe, "Search nprobe.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection and operation timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus.address is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("milvus.collection is required"))
	}
	if o.NList <= 0 || o.NProbe <= 0 {
		errs = append(errs, fmt.Errorf("milvus.nlist and milvus.nprobe must be positive"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus.timeout must be positive"))
	}
	return errs
}
