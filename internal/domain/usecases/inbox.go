package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
	"pkt.systems/pslog"
)

// InboxUseCase collects documents dropped into a watched folder.
type InboxUseCase struct {
	loader  ports.DocumentLoader
	watcher ports.FileWatcher
	settle  time.Duration
}

// NewInboxUseCase creates an InboxUseCase. settle is the quiet period after the last write.
func NewInboxUseCase(loader ports.DocumentLoader, watcher ports.FileWatcher, settle time.Duration) *InboxUseCase {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &InboxUseCase{
		loader:  loader,
		watcher: watcher,
		settle:  settle,
	}
}

// Collect returns the documents in dir, waiting for the first one to arrive when empty.
// Cancelling ctx leaves the caller awaiting input.
func (uc *InboxUseCase) Collect(ctx context.Context, dir string) ([]entities.UploadedDocument, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watch before listing so a file landing in between is not missed.
	events, err := uc.watcher.Watch(watchCtx, dir)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	docs, err := uc.loader.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		return docs, nil
	}

	log := pslog.Ctx(ctx).With("dir", dir)
	log.Info("waiting for documents")

	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil, entities.ErrAwaitingDocuments
		case ev, ok := <-events:
			if !ok {
				return nil, entities.ErrAwaitingDocuments
			}
			if ev.Operation == ports.FileDeleted {
				continue
			}
			log.Debug("inbox event", "path", ev.Path)
			settled = time.After(uc.settle)
		case <-settled:
			settled = nil
			docs, err := uc.loader.LoadDir(ctx, dir)
			if err != nil {
				// Partially written files fail validation; wait for the next write.
				log.Debug("inbox not ready", "err", err)
				continue
			}
			if len(docs) > 0 {
				return docs, nil
			}
		}
	}
}
