package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/validation"
)

// NewDatabaseCmds создаёт команды для работы с БД: connect, tables, schema.
func NewDatabaseCmds(appFn func() *App) []*cobra.Command {
	return []*cobra.Command{
		newConnectCmd(appFn),
		newTablesCmd(appFn),
		newSchemaCmd(appFn),
	}
}

func newConnectCmd(appFn func() *App) *cobra.Command {
	var conn connFlags
	var preflight bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Test a database connection and register it on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()
			out := app.Out
			creds := conn.credentials()

			if err := validation.Connection(creds); err != nil {
				return err
			}

			if prober := app.Prober(preflight); prober != nil {
				if err := prober.Probe(cmd.Context(), creds); err != nil {
					return err
				}
				out.Success("Preflight check passed")
			}

			c, err := app.Client.TestConnection(cmd.Context(), creds)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Connected: %s", c.ID))
			out.Print(
				[]string{"CONNECTION_ID", "HOST", "PORT", "DATABASE", "USER"},
				[][]string{{c.ID, c.Host, strconv.Itoa(c.Port), c.Database, c.Username}},
				c,
			)
			return nil
		},
	}

	conn.register(cmd)
	cmd.Flags().BoolVar(&preflight, "preflight", false, "Check the database directly before asking the backend")

	return cmd
}

func newTablesCmd(appFn func() *App) *cobra.Command {
	var connectionID string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables of a connected database",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			tables, err := app.Client.ListTables(cmd.Context(), connectionID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tables))
			for i, t := range tables {
				rows[i] = []string{t}
			}
			app.Out.Print([]string{"TABLE"}, rows, tables)
			return nil
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection-id", "", "Connection ID from 'connect' (required)")
	cmd.MarkFlagRequired("connection-id")

	return cmd
}

func newSchemaCmd(appFn func() *App) *cobra.Command {
	var connectionID string

	cmd := &cobra.Command{
		Use:   "schema TABLE",
		Short: "Show columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			schema, err := app.Client.TableSchema(cmd.Context(), connectionID, args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(schema.Columns))
			for i, c := range schema.Columns {
				rows[i] = []string{c.Name, c.Type, strconv.FormatBool(c.Nullable)}
			}
			app.Out.Print([]string{"NAME", "TYPE", "NULLABLE"}, rows, schema)
			return nil
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection-id", "", "Connection ID from 'connect' (required)")
	cmd.MarkFlagRequired("connection-id")

	return cmd
}
