package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minndara/site-admin/config"
	"github.com/minndara/site-admin/internal/app"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "siteadmin",
	Short: "Maintenance commands for the site admin backend",
	Long: `siteadmin prepares the document store, migrates legacy services into
categories, hashes operator passwords and exports the static site.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Directory containing config.yaml")

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(migrateCategoriesCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(exportCmd)
}

// withApp loads the configuration, builds the services and hands them to fn.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg)
	log.Logger = logger.ZL

	a, err := app.New(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(context.Background(), a)
}
