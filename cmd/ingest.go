package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/screening"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|url|->",
	Short: "Extract a resume document and store its structured profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ingest(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func ingest(ctx context.Context, source string) {
	a := setup(ctx)
	defer a.Close()

	req := screening.IngestRequest{Name: filepath.Base(source)}
	switch {
	case source == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			a.logger.Fatal("reading stdin", zap.Error(err))
		}
		req.Name, req.Data = "stdin", data
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		req.URL = source
	default:
		req.Path = source
	}

	res, err := a.service.Ingest(ctx, req)
	if err != nil {
		fail(a.logger, "ingesting the document", err)
	}

	a.logger.Info("profile stored",
		zap.String("profile_id", res.ProfileID),
		zap.String("document", res.DocumentRef),
	)

	if err := printJSON(res); err != nil {
		a.logger.Fatal("writing output", zap.Error(err))
	}
}
