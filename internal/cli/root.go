// Package cli implements the vision-cli commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	analysisService "VisionAnalytica/internal/api/analysis/service"
	"VisionAnalytica/internal/config"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

// Context carries what the commands share. Nil fields are filled in from the
// environment before a command runs.
type Context struct {
	Log     *logrus.Logger
	Out     io.Writer
	Config  *config.AppConfig
	Service analysisService.IAnalysisService
	Utils   utils.IUtils

	providers *config.ProviderSet
}

func RootCommand(ctx *Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vision-cli",
		Short:         "Run image analysis and detection from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var debug bool
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	streamCmd := streamCommand(ctx)
	rootCmd.AddCommand(analyzeCommand(ctx), detectCommand(ctx), streamCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case debug:
			ctx.Log.SetLevel(logrus.DebugLevel)
		case os.Getenv("LOG_LEVEL") == "":
			ctx.Log.SetLevel(logrus.InfoLevel)
		}
		// stream talks to a running server and needs no local providers.
		if cmd.Name() == streamCmd.Name() {
			return nil
		}
		return ctx.initialize(cmd.Context())
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.providers.Close()
	}

	return rootCmd
}

func (c *Context) initialize(ctx context.Context) error {
	if c.Config == nil {
		config.LoadEnv(c.Log)
		cfg, err := config.NewAppConfig(os.Getenv)
		if err != nil {
			return err
		}
		c.Config = cfg
	}
	if c.Utils == nil {
		c.Utils = utils.New(c.Config.MaxUploadBytes)
	}
	if c.Service != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	set, err := config.NewProviderSet(ctx, c.Log, c.Config, nil)
	if err != nil {
		return err
	}
	c.providers = set
	c.Service = analysisService.NewAnalysisService(c.Log, set.Summary, set.Detection, nil)
	return nil
}

func (c *Context) readImage(path string) (provider.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return provider.Image{}, fmt.Errorf("read %s: %w", path, err)
	}
	return c.Utils.ImageFromBytes(data, filepath.Base(path))
}

func (c *Context) printJSON(v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
