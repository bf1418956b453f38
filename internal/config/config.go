package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"vtstore/internal/kvfile"
)

const (
	keyStoreFile     = "store_file"
	keyStoreInterval = "store_interval"
	keyRestore       = "restore"
	keyCompress      = "compress"
	keyDebug         = "debug"
)

type Config struct {
	StoreFile     string
	StoreInterval time.Duration // 0 - disable save data
	Restore       bool
	Compress      bool
	Debug         bool
	SettingsFile  string
}

func defaultConfig() *Config {
	return &Config{
		StoreFile:     "db/stash.dat",
		StoreInterval: time.Second * 5,
		Restore:       true,
	}
}

// NewConfig builds the config from defaults, the settings file named by
// -SETTINGS and then the remaining flags, later sources win.
func NewConfig(args []string) (*Config, error) {
	c := defaultConfig()

	fs := flag.NewFlagSet("stash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := fs.String("STORE_FILE", c.StoreFile, "store file")
	i := fs.Duration("STORE_INTERVAL", c.StoreInterval, "store interval")
	r := fs.Bool("RESTORE", c.Restore, "restore DB from disk on startup")
	z := fs.Bool("COMPRESS", c.Compress, "gzip the store file")
	d := fs.Bool("DEBUG", c.Debug, "development logging")
	s := fs.String("SETTINGS", "", "key: value settings file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *s != "" {
		c.SettingsFile = *s
		if err := c.Load(*s); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "STORE_FILE":
			c.StoreFile = *f
		case "STORE_INTERVAL":
			c.StoreInterval = *i
		case "RESTORE":
			c.Restore = *r
		case "COMPRESS":
			c.Compress = *z
		case "DEBUG":
			c.Debug = *d
		}
	})

	return c, nil
}

// Load applies a settings file. Unknown keys are errors.
func (c *Config) Load(path string) error {
	const msg = "config load:"
	r, err := kvfile.Open(path)
	if err != nil {
		return fmt.Errorf("%s %w", msg, err)
	}
	defer r.Close()

	for {
		key, value, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", msg, path, err)
		}
		if err := c.set(key, value); err != nil {
			return fmt.Errorf("%s %s: %w", msg, path, err)
		}
	}
}

func (c *Config) set(key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case keyStoreFile:
		c.StoreFile = value
	case keyStoreInterval:
		c.StoreInterval, err = time.ParseDuration(value)
	case keyRestore:
		c.Restore, err = parseBool(value)
	case keyCompress:
		c.Compress, err = parseBool(value)
	case keyDebug:
		c.Debug, err = parseBool(value)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(value)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Save writes the config as a settings file
func (c *Config) Save(path string) error {
	w, err := kvfile.Create(path)
	if err != nil {
		return err
	}

	return multierr.Combine(
		w.Comment("stash settings"),
		w.Write(keyStoreFile, c.StoreFile),
		w.Write(keyStoreInterval, c.StoreInterval.String()),
		w.Write(keyRestore, formatBool(c.Restore)),
		w.Write(keyCompress, formatBool(c.Compress)),
		w.Write(keyDebug, formatBool(c.Debug)),
		w.Close(),
	)
}
