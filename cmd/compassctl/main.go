// Command compassctl runs imports, mapping maintenance and key generation
// from the shell.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/planpulse/compass-api/pkg/auth"
	"github.com/planpulse/compass-api/pkg/config"
	"github.com/planpulse/compass-api/pkg/csvimport"
	"github.com/planpulse/compass-api/pkg/database"
	"github.com/planpulse/compass-api/pkg/logging"
	"github.com/planpulse/compass-api/pkg/mapping"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *mapping.Store
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "compassctl",
		Short:         "Plan Pulse Compass command line tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil {
				return nil
			}
			config.LoadEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(level)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newKeygenCmd(a),
		newImportCmd(a),
		newSuggestCmd(),
		newMappingsCmd(a),
	)
	return root
}

// mappings opens the value-mapping store on the configured database
func (a *app) mappings() (*mapping.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	db, err := database.InitDB(database.Options{DatabaseURL: a.cfg.DatabaseURL, DataPath: a.cfg.DataPath})
	if err != nil {
		return nil, err
	}
	a.store = mapping.NewStore(database.NewKVStore(db), a.logger)
	return a.store, nil
}

func newKeygenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <userID>",
		Short: "Generate an HMAC-signed API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.APIMasterSecret == "" {
				return fmt.Errorf("API_MASTER_SECRET not found in environment or .env")
			}
			key, err := auth.New(a.cfg.JWTSecret, a.cfg.APIMasterSecret).GenerateHMACKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated Key for %s:\n%s\n", args[0], key)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var showRecords bool

	cmd := &cobra.Command{
		Use:   "import <people|projects|roles> <file>",
		Short: "Parse a CSV or XLSX file and print the import summary as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			importType, path := args[0], args[1]

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := csvimport.ReadFile(filepath.Base(path), f)
			if err != nil {
				return err
			}
			result, err := csvimport.Import(importType, records)
			if err != nil {
				return err
			}
			a.logger.Debug("import parsed",
				zap.String("file", path),
				zap.Int("imported", result.Imported()),
				zap.Int("failed", result.Failed()),
			)

			summary := map[string]interface{}{
				"type":     importType,
				"imported": result.Imported(),
				"failed":   result.Failed(),
				"errors":   result.RowErrors(),
			}
			if showRecords {
				summary["result"] = result
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().BoolVar(&showRecords, "records", false, "include the parsed records")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <value> <option>...",
		Short: "Show which option a raw import value would map to",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, ok := mapping.SuggestMapping(args[0], args[1:])
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no suggestion\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], got)
			return nil
		},
	}
}

func newMappingsCmd(a *app) *cobra.Command {
	var importType, fieldID string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect or clear stored value mappings",
	}
	cmd.PersistentFlags().StringVar(&importType, "type", "", "import type")
	cmd.PersistentFlags().StringVar(&fieldID, "field", "", "field id (requires --type)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.mappings()
			if err != nil {
				return err
			}
			all := store.All()
			sort.SliceStable(all, func(i, j int) bool {
				if all[i].ImportType != all[j].ImportType {
					return all[i].ImportType < all[j].ImportType
				}
				return all[i].FieldID < all[j].FieldID
			})
			out := cmd.OutOrStdout()
			for _, m := range all {
				if importType != "" && m.ImportType != importType {
					continue
				}
				if fieldID != "" && m.FieldID != fieldID {
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", m.ImportType, m.FieldID, m.CSVValue, m.SystemValue)
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear mappings for a field, an import type, or everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if importType == "" && fieldID != "" {
				return fmt.Errorf("--field requires --type")
			}
			store, err := a.mappings()
			if err != nil {
				return err
			}
			removed := store.ClearValueMappings(importType, fieldID)
			scope := strings.TrimSuffix(strings.Join([]string{importType, fieldID}, "/"), "/")
			if scope == "" {
				scope = "all"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d mappings (%s)\n", removed, scope)
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}
