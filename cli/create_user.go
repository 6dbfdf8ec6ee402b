package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcmoiagese/SpartaClaims/cnf"
	"github.com/marcmoiagese/SpartaClaims/core"
	"github.com/marcmoiagese/SpartaClaims/db"
)

type createUserFlags struct {
	username    string
	email       string
	displayName string
	password    string
	roles       []string
}

func newCreateUserCommand() *cobra.Command {
	var f createUserFlags
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Crea un usuari (per exemple el primer administrador)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, ac, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), raw, ac, false)
			if err != nil {
				return err
			}
			defer store.Close()
			u, err := createUser(cmd.Context(), ac, store, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "usuari %s creat (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.username, "username", "", "nom d'usuari")
	cmd.Flags().StringVar(&f.email, "email", "", "correu electrònic")
	cmd.Flags().StringVar(&f.displayName, "name", "", "nom visible")
	cmd.Flags().StringVar(&f.password, "password", "", "contrasenya (mínim 8 caràcters)")
	cmd.Flags().StringSliceVar(&f.roles, "role", []string{core.RoleAdmin}, "rols de l'usuari")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createUser(ctx context.Context, ac cnf.AppConfig, store *db.Store, f createUserFlags) (*db.User, error) {
	app, err := core.NewApp(ctx, ac, store)
	if err != nil {
		return nil, err
	}
	return app.CreateUser(ctx, core.UserInput{
		Username:    f.username,
		Email:       f.email,
		DisplayName: f.displayName,
		Password:    f.password,
		Roles:       f.roles,
	})
}
