package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcmoiagese/SpartaClaims/core"
)

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Arrenca l'API HTTP i els treballs de fons",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, ac, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				ac.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, raw, ac, false)
			if err != nil {
				return err
			}
			app, err := core.NewApp(ctx, ac, store)
			if err != nil {
				store.Close()
				return err
			}
			defer app.Close()
			return app.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "adreça d'escolta (sobreescriu HTTP_ADDR)")
	return cmd
}
