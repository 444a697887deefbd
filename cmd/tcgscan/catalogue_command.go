package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LdDl/tcg-scanner/catalogue"
	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCatalogueCommand(ctx *commandContext) *cobra.Command {
	catalogueCmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Manage card catalogue",
	}
	catalogueCmd.AddCommand(newCatalogueImportCommand(ctx))
	catalogueCmd.AddCommand(newCatalogueBuildCommand(ctx))
	catalogueCmd.AddCommand(newCatalogueInfoCommand(ctx))
	catalogueCmd.AddCommand(newCatalogueExportCommand(ctx))
	return catalogueCmd
}

// lockStore takes exclusive lock next to the catalogue database
func lockStore(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't lock '%s'", path)
	}
	if !ok {
		return nil, errors.Errorf("Catalogue '%s' is being written by another process", path)
	}
	return lock, nil
}

// saveStore writes entries and hash size into SQLite catalogue
func saveStore(ctx context.Context, path string, entries []catalogue.Entry, hashSize int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "Can't create directory '%s'", dir)
		}
	}
	lock, err := lockStore(path)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	store, err := catalogue.OpenStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Put(ctx, entries); err != nil {
		return err
	}
	return store.SetMeta(ctx, catalogue.MetaHashSize, strconv.Itoa(hashSize))
}

func resolveOut(ctx *commandContext, out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", err
		}
		return cfg.Matching.Catalogue, nil
	}
	return out, nil
}

func newCatalogueImportCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "import <csv|xlsx>",
		Short: "Import precomputed fingerprints into SQLite catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := resolveOut(ctx, out)
			if err != nil {
				return err
			}
			entries, err := catalogue.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			hashSize := cfg.Fingerprint.HashSize
			c, dropped, err := catalogue.New(entries, fingerprint.Length(hashSize))
			if err != nil {
				return errors.Wrapf(err, "No entries with hash size %d in '%s'", hashSize, args[0])
			}
			if err := saveStore(cmd.Context(), target, c.Entries(), hashSize); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries into %s (%d dropped)\n", c.Len(), target, dropped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination SQLite catalogue (defaults to matching.catalogue)")
	return cmd
}

func newCatalogueBuildCommand(ctx *commandContext) *cobra.Command {
	var manifest string
	var images string
	var out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fingerprint reference images and store them in SQLite catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := resolveOut(ctx, out)
			if err != nil {
				return err
			}
			f, err := os.Open(manifest)
			if err != nil {
				return errors.Wrapf(err, "Can't open manifest '%s'", manifest)
			}
			rows, err := catalogue.LoadManifestCSV(f)
			f.Close()
			if err != nil {
				return err
			}
			if images == "" {
				images = filepath.Dir(manifest)
			}

			fp, err := fingerprint.New(cfg.Fingerprint.HashSize)
			if err != nil {
				return err
			}
			builder := catalogue.NewBuilder(fp, cfg.Processing.CardWidth, cfg.Processing.CardHeight, cfg.Processing.Workers, ctx.loggerValue())
			entries, stats, err := builder.Build(cmd.Context(), rows, images)
			if err != nil {
				return err
			}
			if err := saveStore(cmd.Context(), target, entries, fp.HashSize()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %d of %d entries into %s (%d skipped)\n", stats.Hashed, stats.Total, target, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "CSV manifest with card metadata and image column")
	cmd.Flags().StringVar(&images, "images", "", "Directory with reference images (defaults to manifest directory)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination SQLite catalogue (defaults to matching.catalogue)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func newCatalogueInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info [path]",
		Short: "Show catalogue summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Matching.Catalogue
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := catalogue.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			hashSize := cfg.Fingerprint.HashSize
			if isStorePath(path) {
				store, err := catalogue.OpenStore(cmd.Context(), path)
				if err != nil {
					return err
				}
				recorded, err := store.HashSize(cmd.Context())
				store.Close()
				if err != nil {
					return err
				}
				if recorded > 0 {
					hashSize = recorded
				}
			}
			c, dropped, err := catalogue.New(entries, fingerprint.Length(hashSize))
			usable := 0
			if err == nil {
				usable = c.Len()
			} else if !errors.Is(err, catalogue.ErrEmpty) {
				return err
			}

			rows := [][]string{
				{"Path", path},
				{"Rows", strconv.Itoa(len(entries))},
				{"Usable entries", strconv.Itoa(usable)},
				{"Dropped", strconv.Itoa(dropped)},
				{"Hash size", strconv.Itoa(hashSize)},
				{"Threshold", strconv.FormatFloat(catalogue.ResolveThreshold(cfg.Matching.Threshold, hashSize), 'f', 2, 64)},
			}
			out := cmd.OutOrStdout()
			if isTerminal(out) {
				fmt.Fprintln(out, renderTable([]string{"Property", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
			}
			return nil
		},
	}
}

func newCatalogueExportCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export catalogue to CSV or XLSX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Matching.Catalogue
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := catalogue.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(out)) {
			case ".xlsx":
				err = catalogue.WriteXLSX(out, entries)
			case ".csv":
				var f *os.File
				f, err = os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "Can't create '%s'", out)
				}
				err = catalogue.WriteCSV(f, entries)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			default:
				return errors.Wrapf(catalogue.ErrFormat, "%s", out)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func isStorePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
