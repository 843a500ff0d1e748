package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/profile"
	"github.com/spigell/cv-screener/internal/render"
	"github.com/spigell/cv-screener/internal/screening"
)

var exportCmd = &cobra.Command{
	Use:   "export [profile-id]",
	Short: "Render a stored or local profile as PDF or HTML",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		exportProfile(cmd.Context(), cmd, id)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("profile-file", "", "render a profile JSON file instead of a stored profile")
	exportCmd.Flags().StringP("format", "f", "pdf", "output format: pdf or html")
	exportCmd.Flags().StringP("output", "o", "", "output path (default is the suggested file name in the current directory)")
}

func exportProfile(ctx context.Context, cmd *cobra.Command, profileID string) {
	a := setup(ctx)
	defer a.Close()

	format, err := render.ParseFormat(cmd.Flag("format").Value.String())
	if err != nil {
		a.logger.Fatal("parsing the format", zap.Error(err))
	}

	req := screening.ExportRequest{ProfileID: profileID, Format: format}

	if path := cmd.Flag("profile-file").Value.String(); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			a.logger.Fatal("reading the profile file", zap.Error(err))
		}
		p, err := profile.Parse(raw)
		if err != nil {
			fail(a.logger, "parsing the profile file", err)
		}
		req.Profile = p
	}

	doc, err := a.service.Export(ctx, req)
	if err != nil {
		fail(a.logger, "rendering the profile", err)
	}

	output := cmd.Flag("output").Value.String()
	if output == "" {
		output = filepath.Base(doc.Filename)
	}

	if err := os.WriteFile(output, doc.Bytes, 0o644); err != nil {
		a.logger.Fatal("writing the document", zap.Error(err))
	}

	a.logger.Info("document written",
		zap.String("filename", output),
		zap.String("content_type", doc.ContentType),
		zap.Int("bytes", len(doc.Bytes)),
	)
}
