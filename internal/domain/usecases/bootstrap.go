// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
	"pkt.systems/pslog"
)

// Assistant defaults used when the config leaves them empty.
const (
	DefaultAssistantName = "FileAssistant"
	DefaultModel         = "gpt-4o"
	DefaultInstructions  = "You are a knowledge assistant, Use your knowledge base to best respond to queries"
	ToolFileSearch       = "file_search"
)

// BootstrapRequest is what the user hands over to start a session.
type BootstrapRequest struct {
	SessionID  string
	Credential entities.Credential
	Documents  []entities.UploadedDocument
}

// BootstrapOptions tune bootstrap and teardown.
type BootstrapOptions struct {
	Assistant     entities.AssistantSpec
	IndexPolicy   PollPolicy
	CleanupRemote bool // delete assistant, index and files at teardown
}

// BootstrapUseCase turns documents and a credential into a ready session.
type BootstrapUseCase struct {
	factory    ports.ProviderFactory
	stager     ports.DocumentStager
	transcript ports.Transcript
	opts       BootstrapOptions
}

// NewBootstrapUseCase creates a BootstrapUseCase with injected dependencies.
func NewBootstrapUseCase(
	factory ports.ProviderFactory,
	stager ports.DocumentStager,
	transcript ports.Transcript,
	opts BootstrapOptions,
) *BootstrapUseCase {
	if opts.Assistant.Name == "" {
		opts.Assistant.Name = DefaultAssistantName
	}
	if opts.Assistant.Model == "" {
		opts.Assistant.Model = DefaultModel
	}
	if opts.Assistant.Instructions == "" {
		opts.Assistant.Instructions = DefaultInstructions
	}
	if len(opts.Assistant.Tools) == 0 {
		opts.Assistant.Tools = []string{ToolFileSearch}
	}
	if opts.IndexPolicy == (PollPolicy{}) {
		opts.IndexPolicy = DefaultIndexPolicy()
	}
	return &BootstrapUseCase{
		factory:    factory,
		stager:     stager,
		transcript: transcript,
		opts:       opts,
	}
}

// Bootstrap uploads every document, builds one index and binds one assistant to it.
// Any failure aborts the whole bootstrap; no partial session is returned.
func (uc *BootstrapUseCase) Bootstrap(ctx context.Context, req BootstrapRequest) (*Session, error) {
	if len(req.Documents) == 0 {
		return nil, entities.ErrAwaitingDocuments
	}
	if req.Credential.Empty() {
		return nil, entities.AuthError("bootstrap", errors.New("missing API key"))
	}
	for _, doc := range req.Documents {
		if err := doc.Validate(); err != nil {
			return nil, err
		}
	}

	provider, err := uc.factory.ForCredential(req.Credential)
	if err != nil {
		return nil, entities.AuthError("bootstrap", err)
	}
	if err := provider.VerifyCredential(ctx); err != nil {
		return nil, err
	}

	log := pslog.Ctx(ctx)
	sess := newSession(req.SessionID, provider)
	failed := true
	defer func() {
		if failed {
			uc.discard(ctx, sess)
		}
	}()

	// 1. Upload sequentially in the order given
	for _, doc := range req.Documents {
		var file entities.RemoteFile
		err := uc.stager.WithStagedFile(ctx, doc, func(name string, r io.Reader) error {
			var uerr error
			file, uerr = provider.UploadFile(ctx, name, r, ports.FilePurposeAssistants)
			return uerr
		})
		if err != nil {
			return nil, err
		}
		if file.Name == "" {
			file.Name = doc.Name
		}
		sess.Files = append(sess.Files, file)
		log.Info("document uploaded", "file", file.ID, "name", file.Name, "bytes", file.Bytes)
	}

	// 2. One index over the full set
	index, err := provider.CreateVectorIndex(ctx, indexName(req), sess.FileIDs())
	if err != nil {
		return nil, err
	}
	sess.Index = index
	log.Info("vector index created", "index", index.ID, "files", len(sess.Files))

	index, err = uc.awaitIndex(ctx, provider, index)
	if err != nil {
		return nil, err
	}
	sess.Index = index

	// 3. One assistant bound to that index
	assistant, err := provider.CreateAssistant(ctx, index.ID, uc.opts.Assistant)
	if err != nil {
		return nil, err
	}
	if assistant.VectorIndexID == "" {
		assistant.VectorIndexID = index.ID
	}
	sess.Assistant = assistant
	log.Info("assistant ready", "assistant", assistant.ID, "model", assistant.Model)

	if sess.ID == "" {
		sess.ID = assistant.ID
	}
	sess.setState(StateReady)
	failed = false
	return sess, nil
}

// awaitIndex waits until the provider finished indexing every file.
func (uc *BootstrapUseCase) awaitIndex(ctx context.Context, provider ports.IndexService, index entities.VectorIndex) (entities.VectorIndex, error) {
	current := index
	fetch := false
	check := func(ctx context.Context) (bool, error) {
		if fetch {
			next, err := provider.GetVectorIndex(ctx, current.ID)
			if err != nil {
				return false, err
			}
			current = next
		}
		fetch = true
		return indexSettled(current)
	}

	err := poll(ctx, uc.opts.IndexPolicy, check)
	switch {
	case errors.Is(err, errPollTimeout):
		return current, entities.IndexError("index_files", entities.ReasonTimeout, err)
	case errors.Is(err, errPollCancelled):
		return current, entities.IndexError("index_files", entities.ReasonCancelled, ctx.Err())
	case err != nil:
		return current, err
	}
	return current, nil
}

// indexSettled reports whether the build finished, failing on any rejected file.
func indexSettled(index entities.VectorIndex) (bool, error) {
	counts := index.FileCounts
	if counts.Failed > 0 || counts.Cancelled > 0 {
		return false, entities.IndexError("index_files", entities.ReasonFailed,
			fmt.Errorf("%d of %d files failed to index", counts.Failed+counts.Cancelled, counts.Total))
	}
	if index.Status == entities.IndexExpired {
		return false, entities.IndexError("index_files", entities.ReasonExpired, errors.New("index expired"))
	}
	return index.Ready(), nil
}

// Teardown closes the session and forgets its display log.
// A running turn is cancelled and waited for first.
// Remote objects are deleted only when CleanupRemote is set.
func (uc *BootstrapUseCase) Teardown(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.close() {
		return nil
	}
	sess.waitTurn()
	if uc.opts.CleanupRemote {
		uc.discard(ctx, sess)
	}
	return uc.transcript.Drop(ctx, sess.ID)
}

// discard deletes remote objects best-effort, newest first.
func (uc *BootstrapUseCase) discard(ctx context.Context, sess *Session) {
	log := pslog.Ctx(ctx)
	// Cleanup runs even when ctx is already cancelled.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	p := sess.provider
	if sess.Assistant.ID != "" {
		if err := p.DeleteAssistant(cctx, sess.Assistant.ID); err != nil {
			log.Warn("assistant cleanup failed", "assistant", sess.Assistant.ID, "err", err)
		}
	}
	if sess.Index.ID != "" {
		if err := p.DeleteVectorIndex(cctx, sess.Index.ID); err != nil {
			log.Warn("index cleanup failed", "index", sess.Index.ID, "err", err)
		}
	}
	for _, f := range sess.Files {
		if err := p.DeleteFile(cctx, f.ID); err != nil {
			log.Warn("file cleanup failed", "file", f.ID, "err", err)
		}
	}
}

func indexName(req BootstrapRequest) string {
	if req.SessionID != "" {
		return "filechat-" + req.SessionID
	}
	return "filechat"
}
