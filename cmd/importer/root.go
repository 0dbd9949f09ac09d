package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/config"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/app"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

type rootOptions struct {
	envFiles []string
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "importer",
		Short:         "Import scraped association fixtures into the member registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load before reading the environment")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "result format: json or yaml")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// withApp starts the database-backed app for one command and stops it afterwards.
func withApp(ctx context.Context, opts *rootOptions, appOpts app.Options, fn func(a *app.App) error) (err error) {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, true)
	if err != nil {
		return err
	}

	a := app.New(cfg, logger, appOpts)
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := a.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	return fn(a)
}

// printResult writes v as indented JSON or as YAML. YAML keys follow the JSON field names.
func printResult(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
