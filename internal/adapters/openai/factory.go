package openai

import (
	"errors"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
)

// Factory builds a Client per session credential with shared options.
type Factory struct {
	opts []Option
}

var _ ports.ProviderFactory = (*Factory)(nil)

// NewFactory creates a Factory applying opts to every client.
func NewFactory(opts ...Option) *Factory {
	return &Factory{opts: opts}
}

// ForCredential returns a client authenticated with cred.
func (f *Factory) ForCredential(cred entities.Credential) (ports.AssistantProvider, error) {
	if cred.Empty() {
		return nil, errors.New("missing API key")
	}
	return New(cred.Secret(), f.opts...), nil
}
