/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/scavenger/hunt"
)

type Config struct {
	bind           string
	catalogPath    string
	duration       time.Duration
	metrics        bool
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	shuffle        bool
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	catalog hunt.Catalog
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.duration < time.Second || c.duration%time.Second != 0 {
		return fmt.Errorf("invalid duration (must be a positive whole number of seconds): %s", c.duration)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

// loadCatalog resolves the item catalog, falling back to the built-in course.
func (c *Config) loadCatalog() error {
	if c.catalogPath == "" {
		c.catalog = hunt.DefaultCatalog()
		return nil
	}

	catalog, err := hunt.LoadCatalog(c.catalogPath)
	if err != nil {
		return err
	}
	c.catalog = catalog

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) logLevel() zerolog.Level {
	if c.verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SCAVENGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "scavenger",
		Short:         "A timed photo scavenger hunt, served as a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			if err := cfg.loadCatalog(); err != nil {
				return err
			}
			zerolog.SetGlobalLevel(cfg.logLevel())
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SCAVENGER_BIND)")
	fs.StringVar(&cfg.catalogPath, "catalog", "", "path to a yaml item catalog, instead of the built-in course (env: SCAVENGER_CATALOG)")
	fs.DurationVarP(&cfg.duration, "duration", "d", hunt.DefaultDuration, "time teams have to find every item (env: SCAVENGER_DURATION)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics on /metrics (env: SCAVENGER_METRICS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SCAVENGER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SCAVENGER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SCAVENGER_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 2*time.Hour, "time before idle games are discarded, 0 to keep forever (env: SCAVENGER_SESSION_TIMEOUT)")
	fs.BoolVar(&cfg.shuffle, "shuffle", true, "shuffle the checklist at the start of every game (env: SCAVENGER_SHUFFLE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SCAVENGER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SCAVENGER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SCAVENGER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SCAVENGER_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("scavenger v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
