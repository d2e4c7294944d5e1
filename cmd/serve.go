package cmd

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"lanzoufetch/api"
	"lanzoufetch/internal"
)

func newServeCmd(c *cli) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution API",
		Long: `Serve POST /api/parse, GET /healthz and GET /metrics.

POST /api/parse accepts {"shareUrl", "password", "renameTo", "mode"} and
answers {"success", "message", "data"}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.config.EnableDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			resolver, _, err := c.newResolver()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			// a mirror attempt makes up to four page requests before probing redirects
			budget := time.Duration(len(c.config.Mirrors)) * 4 * c.config.Timeout
			server := api.NewServer(resolver, api.WithResolveTimeout(budget))
			return server.ListenAndServe(ctx, c.config.ListenAddr)
		},
	}

	serveCmd.Flags().String("listen", internal.DefaultConfig().ListenAddr, "Listen address (env: LANZOUFETCH_LISTEN)")
	_ = c.v.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	return serveCmd
}
