// Package config loads and validates smolstcd's run-time options.
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultK               = 16
	defaultCacheSize       = 10_000
	defaultMaxSyncBatch    = 10_000
	defaultPendingQueueCap = 10_000
	defaultParallelism     = 1
	defaultLogFilename     = "smolstcd.log"
)

// Config defines the configuration options for smolstcd.
type Config struct {
	K               uint16   `long:"k" description:"GHOSTDAG k-cluster parameter"`
	CacheSize       uint64   `long:"cachesize" description:"Cache entries per typed store view"`
	MaxSyncBatch    uint64   `long:"maxsyncbatch" description:"Upper bound on sync list-endpoint limit"`
	PendingQueueCap uint64   `long:"pendingqueuecap" description:"Unknown-parent hold queue capacity"`
	Parallelism     uint32   `long:"parallelism" description:"I/O parallelism hint for the backing store"`
	DBPath          string   `long:"dbpath" description:"Directory of the block database"`
	LogDir          string   `long:"logdir" description:"Directory to log output"`
	DebugLevel      string   `long:"debuglevel" short:"d" description:"Logging level {trace, debug, info, warn, error, critical}"`
	Listen          []string `long:"listen" description:"Multiaddresses to listen on for p2p connections"`
	Connect         []string `long:"connect" description:"Multiaddresses of peers to connect to on startup"`
}

// DefaultConfig returns a Config filled with the default
// values for every option.
func DefaultConfig() *Config {
	return &Config{
		K:               defaultK,
		CacheSize:       defaultCacheSize,
		MaxSyncBatch:    defaultMaxSyncBatch,
		PendingQueueCap: defaultPendingQueueCap,
		Parallelism:     defaultParallelism,
		DBPath:          filepath.Join(".", "data"),
		LogDir:          filepath.Join(".", "logs"),
		DebugLevel:      "info",
		Listen:          []string{"/ip4/0.0.0.0/tcp/9511"},
	}
}

// LoadConfig parses command line arguments on top of the defaults
// and validates the result.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	parser := flags.NewParser(cfg, flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.K == 0 {
		return errors.New("k must be greater than 0")
	}
	if cfg.MaxSyncBatch == 0 {
		return errors.New("maxsyncbatch must be greater than 0")
	}
	if cfg.PendingQueueCap == 0 {
		return errors.New("pendingqueuecap must be greater than 0")
	}
	if cfg.Parallelism == 0 {
		return errors.New("parallelism must be greater than 0")
	}
	return nil
}

// LogFile returns the path of the rotated log file.
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}
