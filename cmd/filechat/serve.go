package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/filechat-go/internal/appconfig"
	httpserver "github.com/0xcro3dile/filechat-go/internal/infrastructure/http"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			a, err := newApp(cfg, afero.NewOsFs())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			logger.Info("provider configured", "base_url", cfg.Provider.BaseURL, "model", cfg.Provider.Model, "thread_mode", cfg.Conversation.ThreadMode, "transcript", cfg.Transcript.Backend, "staging_dir", a.stagingDir)
			srv := httpserver.NewServer(a.bootstrap, a.conversation, httpserver.Options{
				Addr:           cfg.HTTP.Addr,
				MaxUploadBytes: cfg.HTTP.MaxUploadBytes(),
				SessionTTL:     cfg.HTTP.SessionTTL(),
			})
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
