package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/querypulse/querypulse/internal/sqlref"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract table and column references from a SQL query",
		Long: `Extract the tables and columns referenced by a single SQL query.

The query is read from the given file, or from stdin when no file is
given (or when the file is "-"). Extraction is a lexical scan: it reports
likely references, not a parse of the statement.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readQuery(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			res := sqlref.Extract(sql)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			out := cmd.OutOrStdout()
			renderList(out, "Table", res.Tables)
			renderList(out, "Column", res.Columns)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// readQuery reads the SQL text from the file argument or stdin.
func readQuery(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read query from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read query file: %w", err)
	}
	return string(data), nil
}

func renderList(w io.Writer, header string, values []string) {
	if len(values) == 0 {
		_, _ = fmt.Fprintf(w, "No %ss found\n", header)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{header})
	for _, v := range values {
		t.AppendRow(table.Row{v})
	}
	t.Render()
}
