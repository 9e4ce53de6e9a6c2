package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/0xcro3dile/filechat-go/internal/domain/ports"
	"pkt.systems/pslog"
)

// ThreadMode decides how turns map onto provider threads.
type ThreadMode string

const (
	// ThreadPerTurn opens a fresh thread for every user turn.
	// Turns share no provider side memory.
	ThreadPerTurn ThreadMode = "per_turn"

	// ThreadPerSession keeps one thread for the whole session.
	ThreadPerSession ThreadMode = "session"
)

// TurnStage is a state of the per-turn machine.
type TurnStage string

const (
	StageThreadCreated TurnStage = "thread_created"
	StageRunStarted    TurnStage = "run_started"
	StagePolling       TurnStage = "polling"
	StageCompleted     TurnStage = "completed"
	StageFailed        TurnStage = "failed"
)

// TurnEvent reports progress of one turn.
type TurnEvent struct {
	Stage    TurnStage
	ThreadID string
	RunID    string
	Status   entities.RunStatus
	Reply    *entities.DisplayMessage
	Err      error
}

// TurnObserver receives turn events in order. It runs on the turn's goroutine.
type TurnObserver func(TurnEvent)

// TurnResult is the outcome delivered by Submit.
type TurnResult struct {
	Reply entities.DisplayMessage
	Err   error
}

// ConversationUseCase runs chat turns against a bootstrapped session.
type ConversationUseCase struct {
	transcript ports.Transcript
	policy     PollPolicy
	mode       ThreadMode
}

// NewConversationUseCase creates a ConversationUseCase with injected dependencies.
func NewConversationUseCase(transcript ports.Transcript, policy PollPolicy, mode ThreadMode) *ConversationUseCase {
	if policy == (PollPolicy{}) {
		policy = DefaultRunPolicy()
	}
	if mode == "" {
		mode = ThreadPerTurn
	}
	return &ConversationUseCase{
		transcript: transcript,
		policy:     policy,
		mode:       mode,
	}
}

// Mode returns the configured thread mode.
func (uc *ConversationUseCase) Mode() ThreadMode {
	return uc.mode
}

// Turn sends one user message and waits for the assistant reply.
// Turns on the same session run one at a time.
func (uc *ConversationUseCase) Turn(ctx context.Context, sess *Session, text string, observe TurnObserver) (entities.DisplayMessage, error) {
	if sess == nil || !sess.Ready() {
		return entities.DisplayMessage{}, entities.ErrNoSession
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.DisplayMessage{}, entities.ErrEmptyPrompt
	}
	if observe == nil {
		observe = func(TurnEvent) {}
	}

	sess.turn.Lock()
	defer sess.turn.Unlock()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The session may have closed while waiting for the previous turn.
	if !sess.beginTurn(cancel) {
		return entities.DisplayMessage{}, entities.ErrNoSession
	}
	defer sess.endTurn()

	reply, err := uc.turn(ctx, sess, text, observe)
	if err != nil {
		observe(TurnEvent{Stage: StageFailed, Err: err})
		pslog.Ctx(ctx).Warn("turn failed", "session", sess.ID, "err", err)
		return entities.DisplayMessage{}, err
	}
	observe(TurnEvent{Stage: StageCompleted, Reply: &reply})
	return reply, nil
}

func (uc *ConversationUseCase) turn(ctx context.Context, sess *Session, text string, observe TurnObserver) (entities.DisplayMessage, error) {
	log := pslog.Ctx(ctx).With("session", sess.ID)
	p := sess.provider

	if _, err := uc.transcript.Append(ctx, sess.ID, entities.DisplayMessage{
		Role:    entities.RoleUser,
		Content: text,
		At:      time.Now(),
	}); err != nil {
		return entities.DisplayMessage{}, fmt.Errorf("recording user message: %w", err)
	}

	// IDLE -> THREAD_CREATED
	threadID, err := uc.openThread(ctx, sess, text)
	if err != nil {
		return entities.DisplayMessage{}, err
	}
	observe(TurnEvent{Stage: StageThreadCreated, ThreadID: threadID})

	// THREAD_CREATED -> RUN_STARTED
	run, err := p.StartRun(ctx, threadID, sess.Assistant.ID)
	if err != nil {
		return entities.DisplayMessage{}, err
	}
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}
	log.Debug("run started", "thread", threadID, "run", run.ID, "status", run.Status)
	observe(TurnEvent{Stage: StageRunStarted, ThreadID: threadID, RunID: run.ID, Status: run.Status})

	// RUN_STARTED -> POLLING -> terminal
	run, err = uc.awaitRun(ctx, p, run, observe)
	if err != nil {
		if uc.mode == ThreadPerSession && runAbandoned(err) {
			// The run may still be active; the next turn starts a fresh thread.
			sess.setSessionThread("")
		}
		return entities.DisplayMessage{}, err
	}

	messages, err := p.ListMessages(ctx, threadID)
	if err != nil {
		return entities.DisplayMessage{}, err
	}
	content, err := selectReply(messages, run.ID)
	if err != nil {
		return entities.DisplayMessage{}, err
	}

	reply, err := uc.transcript.Append(ctx, sess.ID, entities.DisplayMessage{
		Role:    entities.RoleAssistant,
		Content: content,
		At:      time.Now(),
	})
	if err != nil {
		return entities.DisplayMessage{}, fmt.Errorf("recording reply: %w", err)
	}
	log.Info("turn completed", "thread", threadID, "run", run.ID)
	return reply, nil
}

// openThread returns the thread the user message was posted to.
func (uc *ConversationUseCase) openThread(ctx context.Context, sess *Session, text string) (string, error) {
	msg := entities.ThreadMessage{Role: entities.RoleUser, Content: text}

	if uc.mode == ThreadPerSession {
		if id := sess.sessionThread(); id != "" {
			if _, err := sess.provider.AddMessage(ctx, id, msg); err != nil {
				return "", err
			}
			return id, nil
		}
	}

	thread, err := sess.provider.CreateThread(ctx, []entities.ThreadMessage{msg})
	if err != nil {
		return "", err
	}
	sess.recordThread(thread.ID)
	if uc.mode == ThreadPerSession {
		sess.setSessionThread(thread.ID)
	}
	return thread.ID, nil
}

// awaitRun polls until the run reaches a terminal status or the policy runs out.
func (uc *ConversationUseCase) awaitRun(ctx context.Context, p ports.ThreadService, run entities.Run, observe TurnObserver) (entities.Run, error) {
	current := run
	first := true
	check := func(ctx context.Context) (bool, error) {
		if !first || !current.Status.Terminal() {
			next, err := p.PollRunStatus(ctx, current.ThreadID, current.ID)
			if err != nil {
				return false, err
			}
			if next.ThreadID == "" {
				next.ThreadID = current.ThreadID
			}
			current = next
			observe(TurnEvent{Stage: StagePolling, ThreadID: current.ThreadID, RunID: current.ID, Status: current.Status})
		}
		first = false
		return current.Status.Terminal(), nil
	}

	err := poll(ctx, uc.policy, check)
	switch {
	case errors.Is(err, errPollTimeout):
		uc.cancelRun(ctx, p, current)
		return current, entities.RunError(entities.ReasonTimeout, fmt.Errorf("run %s still %s", current.ID, current.Status))
	case errors.Is(err, errPollCancelled):
		uc.cancelRun(ctx, p, current)
		return current, entities.RunError(entities.ReasonCancelled, ctx.Err())
	case err != nil:
		return current, err
	}

	if current.Status.Succeeded() {
		return current, nil
	}
	var cause error
	if current.LastError != "" {
		cause = errors.New(current.LastError)
	} else {
		cause = fmt.Errorf("run %s ended %s", current.ID, current.Status)
	}
	return current, entities.RunError(runFailureReason(current.Status), cause)
}

// cancelRun asks the provider to stop a run we gave up on.
func (uc *ConversationUseCase) cancelRun(ctx context.Context, p ports.ThreadService, run entities.Run) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := p.CancelRun(cctx, run.ThreadID, run.ID); err != nil {
		pslog.Ctx(ctx).Debug("run cancel failed", "run", run.ID, "err", err)
	}
}

// runAbandoned reports whether the run was given up on before it ended.
func runAbandoned(err error) bool {
	if !entities.IsRun(err) {
		return false
	}
	switch entities.ReasonOf(err) {
	case entities.ReasonTimeout, entities.ReasonCancelled:
		return true
	}
	return false
}

func runFailureReason(status entities.RunStatus) string {
	switch status {
	case entities.RunExpired:
		return entities.ReasonExpired
	case entities.RunCancelled, entities.RunCancelling:
		return entities.ReasonCancelled
	case entities.RunIncomplete:
		return entities.ReasonIncomplete
	case entities.RunRequiresAction:
		return entities.ReasonRequiresAction
	default:
		return entities.ReasonFailed
	}
}

// selectReply picks the newest assistant message, preferring ones from runID.
func selectReply(messages []entities.ThreadMessage, runID string) (string, error) {
	var best *entities.ThreadMessage
	var bestFromRun bool
	for i := range messages {
		m := &messages[i]
		if m.Role != entities.RoleAssistant || strings.TrimSpace(m.Content) == "" {
			continue
		}
		fromRun := m.RunID != "" && m.RunID == runID
		switch {
		case best == nil:
		case fromRun && !bestFromRun:
		case fromRun == bestFromRun && m.CreatedAt.After(best.CreatedAt):
		default:
			continue
		}
		best, bestFromRun = m, fromRun
	}
	if best == nil {
		return "", entities.RunError(entities.ReasonNoReply, errors.New("thread holds no assistant message"))
	}
	return best.Content, nil
}

// Submit runs a turn in the background and delivers the result once.
func (uc *ConversationUseCase) Submit(ctx context.Context, sess *Session, text string, observe TurnObserver) <-chan TurnResult {
	out := make(chan TurnResult, 1)
	go func() {
		defer close(out)
		reply, err := uc.Turn(ctx, sess, text, observe)
		out <- TurnResult{Reply: reply, Err: err}
	}()
	return out
}

// History returns the session display log in chronological order.
func (uc *ConversationUseCase) History(ctx context.Context, sess *Session) ([]entities.DisplayMessage, error) {
	if sess == nil {
		return nil, entities.ErrNoSession
	}
	return uc.transcript.List(ctx, sess.ID)
}
