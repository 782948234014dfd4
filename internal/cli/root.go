package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/config"
	"github.com/shaiso/Importer/internal/telemetry"
)

// rootFlags — PersistentFlags корневой команды.
type rootFlags struct {
	apiURL      string
	token       string
	metricsAddr string
	envFile     string
	jsonOutput  bool
}

// Execute собирает дерево команд и выполняет args.
// Ресурсы App освобождаются после выполнения команды, в том числе при ошибке.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) error {
	var app *App
	root := newRootCmd(version, func(a *App) { app = a })
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if app != nil {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(version string, onApp func(*App)) *cobra.Command {
	var flags rootFlags
	var app *App

	root := &cobra.Command{
		Use:           "importer",
		Short:         "Importer CLI — import CSV and Excel files into a database",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			logger := telemetry.SetupLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			cmd.SetContext(telemetry.WithLogger(cmd.Context(), logger))
			out := NewOutputTo(cmd.OutOrStdout(), cmd.ErrOrStderr(), flags.jsonOutput)

			app, err = NewApp(cfg, out, logger)
			if err != nil {
				return err
			}
			onApp(app)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "Backend API URL (default from IMPORTER_API_URL or http://localhost:8000)")
	pf.StringVar(&flags.token, "token", "", "Bearer token for the backend API")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	pf.StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "Path to .env file")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")

	appFn := func() *App { return app }

	root.AddCommand(NewDatabaseCmds(appFn)...)
	root.AddCommand(NewFileCmds(appFn)...)
	root.AddCommand(
		NewImportCmd(appFn),
		NewWizardCmd(appFn),
	)

	return root
}

// loadConfig читает конфигурацию и применяет явно заданные флаги.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("api-url") {
		cfg.API.URL = flags.apiURL
	}
	if pf.Changed("token") {
		cfg.API.Token = flags.token
	}
	if pf.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
