package cli

import (
	"fmt"
	"os"

	"VisionAnalytica/internal/api/analysis"
	"VisionAnalytica/pkg/overlay"
	"github.com/spf13/cobra"
)

type detectFlags struct {
	display       analysis.DisplayQuery
	annotatePath  string
	annotateWidth int
}

func detectCommand(ctx *Context) *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Detect riders and helmet violations in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (flags.display.Width > 0) != (flags.display.Height > 0) {
				return fmt.Errorf("--display-width and --display-height must be given together")
			}

			img, err := ctx.readImage(args[0])
			if err != nil {
				return err
			}

			result, err := ctx.Service.Detect(cmd.Context(), img)
			if err != nil {
				return err
			}

			resp := analysis.DetectionResponse{Data: result}
			if flags.display.Requested() {
				if resp.Overlay, err = ctx.Service.Overlay(result, flags.display.Size()); err != nil {
					return err
				}
			}

			if flags.annotatePath != "" {
				png, err := overlay.Render(img.Data, result, flags.annotateWidth)
				if err != nil {
					return err
				}
				if err := os.WriteFile(flags.annotatePath, png, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", flags.annotatePath, err)
				}
				ctx.Log.WithField("path", flags.annotatePath).Info("Annotated image written")
			}

			return ctx.printJSON(resp)
		},
	}

	cmd.Flags().Float64Var(&flags.display.Width, "display-width", 0, "Width of the display the overlay is computed for")
	cmd.Flags().Float64Var(&flags.display.Height, "display-height", 0, "Height of the display the overlay is computed for")
	cmd.Flags().StringVar(&flags.annotatePath, "annotate", "", "Write a PNG with the detections drawn to this path")
	cmd.Flags().IntVar(&flags.annotateWidth, "annotate-width", 0, "Resize the annotated PNG to this width")

	return cmd
}
