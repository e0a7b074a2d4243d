package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/postcodes-geocoder/internal/app"
	"github.com/samvad-hq/postcodes-geocoder/internal/config"
	"github.com/samvad-hq/postcodes-geocoder/internal/domain"
	"github.com/samvad-hq/postcodes-geocoder/internal/logger"
	"github.com/samvad-hq/postcodes-geocoder/pkg/postcodes"
	"github.com/spf13/cobra"
)

// cli holds the state shared by every subcommand.
type cli struct {
	cfg     *config.Config
	out     io.Writer
	log     logger.Logger
	host    string
	headers []string
	timeout time.Duration
	level   string
	summary bool
}

func newRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	c := &cli{cfg: cfg, out: out, log: &logger.NopLogger{}}

	root := &cobra.Command{
		Use:           "postcodes",
		Short:         "Query postcodes.io for UK postcode data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.level != "" {
				c.cfg.LogLevel = c.level
			}
			log, err := logger.Init(c.cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.log = log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.host, "host", cfg.PostcodesHost, "postcodes.io base URL")
	root.PersistentFlags().StringArrayVar(&c.headers, "header", nil, "extra request header as key=value (repeatable)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	root.PersistentFlags().BoolVar(&c.summary, "summary", false, "print one line per postcode or outcode instead of JSON")
	root.PersistentFlags().StringVar(&c.level, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		c.lookupCmd("lookup", "Look up a postcode or outcode", func(cl *postcodes.Client, cmd *cobra.Command, q string) (json.RawMessage, error) {
			return cl.Lookup(cmd.Context(), q)
		}),
		c.lookupCmd("lookup-postcode", "Look up a full postcode", func(cl *postcodes.Client, cmd *cobra.Command, q string) (json.RawMessage, error) {
			return cl.LookupPostcode(cmd.Context(), q)
		}),
		c.lookupCmd("lookup-outcode", "Look up an outward code", func(cl *postcodes.Client, cmd *cobra.Command, q string) (json.RawMessage, error) {
			return cl.LookupOutcode(cmd.Context(), q)
		}),
		c.nearCmd(),
		c.reverseCmd(),
		c.validateCmd(),
		c.randomCmd(),
		c.batchCmd(),
	)
	return root
}

func (c *cli) client() (*postcodes.Client, error) {
	headers, err := parseHeaders(c.headers)
	if err != nil {
		return nil, err
	}
	return postcodes.NewFromURL(c.host,
		postcodes.WithHeaders(headers),
		postcodes.WithTimeout(c.timeout),
		postcodes.WithMaxRedirects(c.cfg.MaxRedirects),
		postcodes.WithLogger(c.log),
	)
}

func (c *cli) lookupCmd(use, short string, fn func(*postcodes.Client, *cobra.Command, string) (json.RawMessage, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <query>",
		Short:   short,
		Args:    cobra.MinimumNArgs(1),
		Example: "  postcodes " + use + " EC1V 9LB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			raw, err := fn(cl, cmd, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.write(raw)
		},
	}
}

func (c *cli) nearCmd() *cobra.Command {
	var opts postcodes.NearOptions
	cmd := &cobra.Command{
		Use:   "near <postcode> | near <lat> <lon>",
		Short: "List postcodes near a postcode or coordinate",
		Args:  cobra.MinimumNArgs(1),
		Example: "  postcodes near EC1V 9LB\n" +
			"  postcodes near --limit 5 -- 51.5275 -0.1024",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			var list []json.RawMessage
			if lat, lon, ok := parseCoordinate(args); ok {
				list, err = cl.NearCoordinate(cmd.Context(), lat, lon, &opts)
			} else {
				list, err = cl.NearPostcode(cmd.Context(), strings.Join(args, " "))
			}
			if err != nil {
				return err
			}
			return c.writeList(list)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results for coordinate searches")
	cmd.Flags().IntVar(&opts.Radius, "radius", 0, "search radius in metres for coordinate searches")
	cmd.Flags().BoolVar(&opts.WideSearch, "wide-search", false, "search up to 20km for coordinate searches")
	return cmd
}

func (c *cli) reverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reverse <lat> <lon>",
		Short:   "Find the nearest postcode to a coordinate",
		Args:    cobra.ExactArgs(2),
		Example: "  postcodes reverse -- 51.5275 -0.1024",
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, ok := parseCoordinate(args)
			if !ok {
				return fmt.Errorf("%w: reverse expects numeric latitude and longitude", postcodes.ErrInvalidArguments)
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			raw, err := cl.ReverseGeocode(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			return c.write(raw)
		},
	}
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <postcode>",
		Short: "Check whether a postcode exists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ok, err := cl.Validate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, strconv.FormatBool(ok))
			return err
		},
	}
}

func (c *cli) randomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Fetch a random postcode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			raw, err := cl.Random(cmd.Context())
			if err != nil {
				return err
			}
			return c.write(raw)
		},
	}
}

func (c *cli) batchCmd() *cobra.Command {
	var (
		jobsFile       string
		publishersFile string
		interval       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the jobs file and publish results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *c.cfg
			cfg.PostcodesHost = c.host
			cfg.RequestTimeout = c.timeout
			cfg.JobsFile = jobsFile
			cfg.PublishersFile = publishersFile
			cfg.BatchInterval = interval

			c.log.InfoObj("batch starting", "config", cfg)
			runner, err := app.NewRunner(cmd.Context(), &cfg, c.log)
			if err != nil {
				c.log.ErrorObj("failed to initialize runner", "error", err)
				return err
			}
			if err := runner.Run(cmd.Context()); err != nil {
				return fmt.Errorf("batch run: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jobsFile, "jobs", c.cfg.JobsFile, "jobs file (YAML or JSON)")
	cmd.Flags().StringVar(&publishersFile, "publishers", c.cfg.PublishersFile, "publishers file (YAML or JSON)")
	cmd.Flags().DurationVar(&interval, "interval", c.cfg.BatchInterval, "repeat interval; 0 runs a single pass")
	return cmd
}

// parseHeaders turns repeated key=value flags into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: header %q must be key=value", postcodes.ErrInvalidArguments, p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func parseCoordinate(args []string) (float64, float64, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// write prints a single result as JSON, or as a summary line when --summary is set.
// Payloads without a postcode or outcode fall back to JSON.
func (c *cli) write(raw json.RawMessage) error {
	if c.summary {
		if line := domain.Summarize(raw); line != "" {
			_, err := fmt.Fprintln(c.out, line)
			return err
		}
	}
	return writeJSON(c.out, raw)
}

func (c *cli) writeList(list []json.RawMessage) error {
	if c.summary {
		for _, item := range list {
			if err := c.write(item); err != nil {
				return err
			}
		}
		return nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return writeJSON(c.out, raw)
}

// writeJSON pretty-prints a result; an absent result prints null.
func writeJSON(w io.Writer, raw json.RawMessage) error {
	if raw == nil {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
