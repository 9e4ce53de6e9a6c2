package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/filechat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/filechat-go/internal/adapters/loader"
	"github.com/0xcro3dile/filechat-go/internal/appconfig"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
	"github.com/0xcro3dile/filechat-go/internal/infrastructure/tui"
	"pkt.systems/pslog"
)

// inboxFromConfig is the --inbox value meaning "use inbox.dir".
const inboxFromConfig = "config"

func newChatCmd() *cobra.Command {
	var cfgPath string
	var inboxDir string
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			// The alternate screen owns the terminal, so logs go to a file or nowhere.
			out, closeLog, err := openLogOutput(logFile)
			if err != nil {
				return err
			}
			defer closeLog()
			logger := pslog.LoggerFromEnv(
				pslog.WithEnvWriter(out),
				pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, NoColor: true}),
			)
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			log.SetOutput(pslog.LogLogger(logger).Writer())

			fs := afero.NewOsFs()
			a, err := newApp(cfg, fs)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			pdfLoader := loader.NewPDFLoader(fs)
			deps := tui.Deps{
				Bootstrap:    a.bootstrap,
				Conversation: a.conversation,
				Loader:       pdfLoader,
				APIKey:       os.Getenv("OPENAI_API_KEY"),
			}

			if inboxDir != "" {
				dir := resolveInbox(inboxDir, cfg)
				if err := fs.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("creating inbox %s: %w", dir, err)
				}
				watcher, err := filewatcher.NewFSNotifyWatcher(pdfLoader.SupportedExtensions())
				if err != nil {
					return err
				}
				defer func() { _ = watcher.Stop() }()
				deps.Inbox = usecases.NewInboxUseCase(pdfLoader, watcher, cfg.Inbox.Settle())
				deps.InboxDir = dir
			}

			logger.Info("terminal ui starting", "model", cfg.Provider.Model, "inbox", deps.InboxDir)
			return tui.Run(ctx, deps)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&inboxDir, "inbox", "", `wait for PDFs dropped into DIR when no paths are given ("config" uses inbox.dir)`)
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of discarding them")
	return cmd
}

func resolveInbox(flag string, cfg appconfig.Config) string {
	if flag == inboxFromConfig {
		return cfg.Inbox.Dir
	}
	return loader.ExpandHome(flag)
}

func openLogOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(loader.ExpandHome(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
