package cli

import (
	"VisionAnalytica/internal/api/analysis"
	"github.com/spf13/cobra"
)

func analyzeCommand(ctx *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [image]",
		Short: "Summarize an image with the first available vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := ctx.readImage(args[0])
			if err != nil {
				return err
			}

			result, err := ctx.Service.Analyze(cmd.Context(), img)
			if err != nil {
				return err
			}
			return ctx.printJSON(analysis.AnalysisResponse{Data: result})
		},
	}
}
