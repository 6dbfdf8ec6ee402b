package cli

import (
	"github.com/spf13/cobra"

	"github.com/marcmoiagese/SpartaClaims/core"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica l'esquema de la base de dades",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, ac, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), raw, ac, true)
			if err != nil {
				return err
			}
			defer store.Close()
			core.Infof("Esquema aplicat a %s", ac.DBEngine)
			return nil
		},
	}
}
