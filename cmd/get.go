package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lanzoufetch/downloader"
	"lanzoufetch/internal"
	"lanzoufetch/utils"
)

func newGetCmd(c *cli) *cobra.Command {
	var (
		outputPath string
		rateLimit  string
	)

	getCmd := &cobra.Command{
		Use:   "get [flags] <URL>",
		Short: "Resolve a share link and download the file",
		Long: `Resolve a share link and stream the file to disk.

The file is written to <output>.part and renamed into place once complete.
Without --output the resolved file name is used in the working directory;
an existing directory as --output receives the resolved file name.

Examples:
  lanzoufetch get https://www.lanzoux.com/iAbC123
  lanzoufetch get --pwd 1234 -o ~/Downloads/ https://www.lanzoux.com/iAbC123
  lanzoufetch get -r 500K -o app.apk https://www.lanzoux.com/iAbC123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rateLimitBytes int64
			if rateLimit != "" {
				var err error
				rateLimitBytes, err = utils.ParseRateLimit(rateLimit)
				if err != nil {
					validationErr := internal.NewValidationErrorWithValue("limit_rate", "invalid format", rateLimit).
						WithSuggestion("Use formats like 1M (1 MB/s), 500K (500 KB/s) or 1024 (1024 bytes/s)")
					internal.LogValidationError(validationErr)
					return fmt.Errorf("invalid rate limit format: %w", err)
				}
			}

			resolver, client, err := c.newResolver()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			meta, err := resolver.Resolve(ctx, c.request(args[0], internal.ModeParse))
			if err != nil {
				le := internal.AsLanzouError(err)
				internal.LogLanzouError(le)
				return fmt.Errorf("resolution failed: %s", le.Message)
			}

			quiet := c.config.QuietMode
			engine := downloader.NewEngine(c.config, client)
			engine.SetProgressOutput(cmd.ErrOrStderr())
			target := engine.OutputPathFor(meta, outputPath)

			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "File: %s (%s)\n", meta.Filename, meta.Size)
				fmt.Fprintf(cmd.ErrOrStderr(), "Output: %s\n", target)
				if rateLimitBytes > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "Rate limit: %s\n", utils.FormatRate(rateLimitBytes))
				}
			}

			err = engine.Download(ctx, meta, &internal.DownloadConfig{
				OutputPath: target,
				RateLimit:  rateLimitBytes,
				Quiet:      quiet,
			})
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("download cancelled")
				}
				return fmt.Errorf("download failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}

	getCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file or directory")
	getCmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s)")

	return getCmd
}
