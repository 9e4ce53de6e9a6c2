package main

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/0xcro3dile/filechat-go/internal/adapters/openai"
	"github.com/0xcro3dile/filechat-go/internal/adapters/staging"
	"github.com/0xcro3dile/filechat-go/internal/adapters/transcript"
	"github.com/0xcro3dile/filechat-go/internal/appconfig"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
	"github.com/0xcro3dile/filechat-go/internal/domain/usecases"
)

type transcriptStore interface {
	ports.Transcript
	Close() error
}

// app holds the use cases shared by both front-ends.
type app struct {
	bootstrap    *usecases.BootstrapUseCase
	conversation *usecases.ConversationUseCase
	transcript   transcriptStore
	stagingDir   string
}

func newApp(cfg appconfig.Config, fs afero.Fs) (*app, error) {
	factory := openai.NewFactory(
		openai.WithBaseURL(cfg.Provider.BaseURL),
		openai.WithTimeout(cfg.Provider.RequestTimeout()),
	)
	stager, err := staging.NewStager(fs, cfg.Staging.Dir)
	if err != nil {
		return nil, err
	}
	store, err := openTranscript(cfg.Transcript.Backend)
	if err != nil {
		return nil, err
	}
	return &app{
		bootstrap:    usecases.NewBootstrapUseCase(factory, stager, store, cfg.BootstrapOptions()),
		conversation: usecases.NewConversationUseCase(store, cfg.Polling.Policy(), usecases.ThreadMode(cfg.Conversation.ThreadMode)),
		transcript:   store,
		stagingDir:   stager.Dir(),
	}, nil
}

func (a *app) Close() error {
	return a.transcript.Close()
}

func openTranscript(backend string) (transcriptStore, error) {
	switch backend {
	case appconfig.TranscriptMemory, "":
		return transcript.NewInMemoryStore(), nil
	case appconfig.TranscriptSQLite:
		return transcript.NewSQLiteStore()
	default:
		return nil, fmt.Errorf("unsupported transcript backend %q", backend)
	}
}
