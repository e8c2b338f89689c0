package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"filegate/internal/cli"
	"filegate/internal/client"
	"filegate/internal/config"
	"filegate/internal/server"
	"filegate/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var v *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "filegate",
	Short: "Filegate stores and serves files by key.",
	Long:  `Filegate is an HTTP gateway in front of an object store. Files are uploaded, downloaded and deleted by key.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(v.GetString("LOG_LEVEL"), v.GetString("LOG_FORMAT"))
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server.",
	Long:  `Run the gateway server. The object store backend is chosen with OBJECT_BACKEND_DRIVER.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(v)
		if err != nil {
			return err
		}
		return server.Serve(cmd.Context(), cfg)
	},
}

var pushCmdFlags cli.PushFlags
var pushCmd = &cobra.Command{
	Use:   "push [file1] [file2] ...",
	Short: "Upload files.",
	Long:  `Upload files. Each file is stored under its base name unless --key is given.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return cli.Push(cmd.Context(), c, pushCmdFlags, args, cmd.OutOrStdout())
	},
}

var pullCmdFlags cli.PullFlags
var pullCmd = &cobra.Command{
	Use:   "pull [key]",
	Short: "Download a file.",
	Long:  `Download a file. Without --out the content is written to stdout, or to a file named after the key when stdout is a terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return cli.Pull(cmd.Context(), c, pullCmdFlags, args[0], os.Stdout)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [key1] [key2] ...",
	Short: "Delete files.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return cli.Remove(cmd.Context(), c, args, cmd.OutOrStdout())
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a capability token.",
	Long:  `Save a capability token. It is sent as a bearer token on every request.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Login(os.Stdin, cmd.OutOrStdout())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved capability token.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Logout(cmd.OutOrStdout())
	},
}

func newClient() (*client.Client, error) {
	cfg, err := config.LoadClient(v)
	if err != nil {
		return nil, err
	}
	return client.New(cfg), nil
}

func main() {
	v = config.New()
	rootCmd.AddCommand(serveCmd, pushCmd, pullCmd, rmCmd, loginCmd, logoutCmd)

	// ==============
	// rootCmd flags
	// ==============
	rootCmd.PersistentFlags().String("url", "", "Gateway base URL (env FILEGATE_URL)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (env LOG_LEVEL)")
	v.BindPFlag("FILEGATE_URL", rootCmd.PersistentFlags().Lookup("url"))
	v.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))

	// ==============
	// serveCmd flags
	// ==============
	serveCmd.Flags().Int("port", 3000, "The server port (env SERVER_PORT)")
	serveCmd.Flags().String("base-path", "", "Prefix for the /file routes (env SERVER_BASE_PATH)")
	v.BindPFlag("SERVER_PORT", serveCmd.Flags().Lookup("port"))
	v.BindPFlag("SERVER_BASE_PATH", serveCmd.Flags().Lookup("base-path"))

	// =============
	// pushCmd flags
	// =============
	pushCmd.Flags().StringVarP(
		&pushCmdFlags.Key, "key", "k", "", "Key to store the file under (single file only)",
	)
	pushCmd.Flags().StringVarP(
		&pushCmdFlags.Zip, "zip", "z", "", "Bundle all arguments into one zip stored under this key",
	)

	// =============
	// pullCmd flags
	// =============
	pullCmd.Flags().StringVarP(
		&pullCmdFlags.Out, "out", "o", "", "Output file",
	)
	pullCmd.Flags().StringVar(
		&pullCmdFlags.Unzip, "unzip", "", "Extract a zip object into this directory",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
