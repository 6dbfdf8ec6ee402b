package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/core"
	"github.com/marcmoiagese/SpartaClaims/db"
)

var configPath string

// NewRootCommand construeix l'ordre sparta amb totes les subordres.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sparta",
		Short:         "Gestió de sinistres Sparta",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "cnf/config.cfg", "fitxer de configuració clau=valor")
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCreateUserCommand())
	return root
}

// Execute és el punt d'entrada del binari.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig llegeix el fitxer (si existeix), aplica l'entorn i configura el log.
func loadConfig() (map[string]string, cnf.AppConfig, error) {
	raw := map[string]string{}
	if _, err := os.Stat(configPath); err == nil {
		if raw, err = cnf.LoadConfig(configPath); err != nil {
			return nil, cnf.AppConfig{}, err
		}
	}
	raw = cnf.ApplyEnv(raw)
	cnf.Config = raw
	ac, err := cnf.ParseConfig(raw)
	if err != nil {
		return nil, ac, err
	}
	core.SetLogLevel(ac.LogLevel)
	return raw, ac, nil
}

// openStore obre la BD i aplica l'esquema si force o DB_MIGRATE ho demanen.
func openStore(ctx context.Context, raw map[string]string, ac cnf.AppConfig, force bool) (*db.Store, error) {
	store, err := db.Open(raw)
	if err != nil {
		return nil, err
	}
	if force || ac.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
