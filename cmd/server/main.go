package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var envFile string

	root := &cobra.Command{
		Use:           "inkpress",
		Short:         "Blog content management server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().String("storage", "", "storage backend (memory or postgres)")
	root.PersistentFlags().String("database-url", "", "postgres connection string")
	_ = v.BindPFlag("STORAGE", root.PersistentFlags().Lookup("storage"))
	_ = v.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, envFile)
		},
	}
	serve.Flags().String("port", "", "listen port")
	_ = v.BindPFlag("PORT", serve.Flags().Lookup("port"))

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(v, envFile)
		},
	}

	grantRole := &cobra.Command{
		Use:   "grant-role <uid> <role>",
		Short: "Set the role of a user, recorded as a system change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrantRole(cmd.Context(), v, envFile, args[0], args[1])
		},
	}

	root.AddCommand(serve, migrate, grantRole)
	return root
}
