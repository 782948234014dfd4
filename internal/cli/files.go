package cli

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/filemeta"
	"github.com/shaiso/Importer/internal/validation"
)

// uploadResult — результат upload для JSON вывода.
type uploadResult struct {
	FileID  string       `json:"file_id"`
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
	Rows    int          `json:"rows"`
	Columns []string     `json:"columns"`
	Preview []domain.Row `json:"preview"`
}

// inspectResult — результат inspect для JSON вывода.
type inspectResult struct {
	Name     string       `json:"name"`
	Size     int64        `json:"size"`
	MIMEType string       `json:"mime_type"`
	Detected string       `json:"detected_type,omitempty"`
	Rows     int          `json:"rows"`
	Columns  []string     `json:"columns"`
	Preview  []domain.Row `json:"preview"`
	Problem  string       `json:"problem,omitempty"`
}

// NewFileCmds создаёт команды для работы с файлами: upload, preview,
// validate-file, inspect.
func NewFileCmds(appFn func() *App) []*cobra.Command {
	return []*cobra.Command{
		newUploadCmd(appFn),
		newPreviewCmd(appFn),
		newValidateFileCmd(appFn),
		newInspectCmd(appFn),
	}
}

// uploadFile проверяет файл локально и загружает его с progress bar.
func uploadFile(app *App, path string, upload func(client.FileUpload) (*domain.UploadedFile, error)) (*domain.UploadedFile, error) {
	info, err := filemeta.Inspect(path, 0)
	if err != nil {
		return nil, err
	}
	if err := validation.File(info.FileInfo()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bar := app.Out.Progress("Uploading " + info.Name)
	file, err := upload(client.FileUpload{
		Name:     info.Name,
		Size:     info.Size,
		MIMEType: info.MIMEType,
		Reader:   f,
		OnProgress: func(percent int) {
			bar.Set(percent)
		},
	})
	if err != nil {
		bar.Exit()
		return nil, err
	}
	bar.Finish()

	return file, nil
}

func newUploadCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload a CSV or Excel file to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()
			ctx := cmd.Context()

			file, err := uploadFile(app, args[0], func(u client.FileUpload) (*domain.UploadedFile, error) {
				return app.Client.UploadFile(ctx, u)
			})
			if err != nil {
				return err
			}

			app.Out.Success(fmt.Sprintf("File uploaded: %s", file.ID))
			app.Out.Print(
				[]string{"FILE_ID", "NAME", "ROWS", "COLUMNS"},
				[][]string{{file.ID, file.Name, strconv.Itoa(file.RowCount), strings.Join(file.Columns(), ", ")}},
				uploadResult{
					FileID:  file.ID,
					Name:    file.Name,
					Size:    file.Size,
					Rows:    file.RowCount,
					Columns: file.Columns(),
					Preview: file.Preview(),
				},
			)
			return nil
		},
	}
}

func newPreviewCmd(appFn func() *App) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "preview FILE_ID",
		Short: "Show the first rows of an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			preview, err := app.Client.Preview(cmd.Context(), args[0], rows)
			if err != nil {
				return err
			}

			headers, table := rowsTable(preview, nil)
			app.Out.Print(headers, table, preview)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", client.DefaultPreviewRows, "Number of rows")

	return cmd
}

func newValidateFileCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-file FILE_ID",
		Short: "Ask the backend to validate an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			report, err := app.Client.ValidateFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(report))
			for k := range report {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			rows := make([][]string, len(keys))
			for i, k := range keys {
				rows[i] = []string{k, formatValue(report[k])}
			}
			app.Out.Print([]string{"KEY", "VALUE"}, rows, report)
			return nil
		},
	}
}

func newInspectCmd(appFn func() *App) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "Inspect a local file without uploading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := appFn().Out

			info, err := filemeta.Inspect(args[0], rows)
			if err != nil {
				return err
			}

			res := inspectResult{
				Name:     info.Name,
				Size:     info.Size,
				MIMEType: info.MIMEType,
				Detected: info.Detected,
				Rows:     info.RowCount,
				Columns:  info.Columns,
				Preview:  info.Preview,
			}
			if err := validation.File(info.FileInfo()); err != nil {
				res.Problem = err.Error()
			}

			if out.JSONMode() {
				out.JSON(res)
				return nil
			}

			out.Table([]string{"NAME", "SIZE", "TYPE", "ROWS", "COLUMNS"}, [][]string{{
				info.Name,
				info.HumanSize(),
				info.MIMEType,
				strconv.Itoa(info.RowCount),
				strconv.Itoa(len(info.Columns)),
			}})

			if res.Problem != "" {
				out.Warn(res.Problem)
			}
			if !info.Parsed {
				out.Warn("preview is only available for CSV and XLSX files")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout())
			headers, table := rowsTable(info.Preview, info.Columns)
			out.Table(headers, table)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", filemeta.DefaultPreviewRows, "Number of preview rows")

	return cmd
}
