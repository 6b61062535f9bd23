package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minndara/site-admin/internal/app"
	"github.com/minndara/site-admin/pkg/security"
)

var (
	migrateCategory string
	exportDir       string
	exportCats      []string
	hashCost        int
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the documents table in postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if a.DB == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store configured, nothing to do")
				return nil
			}
			if err := a.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		})
	},
}

var migrateCategoriesCmd = &cobra.Command{
	Use:   "migrate-categories",
	Short: "Move services without a category into one",
	Long: `Stamps a category on every service that has none. Without --category the
configured default category is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			category := migrateCategory
			if category == "" {
				category = a.Catalog.DefaultCategory()
			}
			n, err := a.Catalog.MigrateOrphans(ctx, category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d services into %q\n", n, category)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the static category pages and settings.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			dir := exportDir
			if dir == "" {
				dir = a.Config.Public.ExportDir
			}
			files, err := a.Public.Export(ctx, dir, exportCats)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		})
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash of a password for auth.users",
	Long: `Prints the bcrypt hash to put in the password_hash field of an operator.
The password is read from the first argument or, when absent, from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		hash, err := security.NewBcryptHasher(hashCost).Hash(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func readPassword(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given")
	}
	return password, nil
}

func init() {
	migrateCategoriesCmd.Flags().StringVar(&migrateCategory, "category", "", "Target category (defaults to catalog.default_category)")

	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (defaults to public.export_dir)")
	exportCmd.Flags().StringSliceVar(&exportCats, "categories", nil, "Categories to export (defaults to public.categories)")

	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (defaults to bcrypt.DefaultCost)")
}
