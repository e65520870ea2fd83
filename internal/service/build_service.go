package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/google/uuid"
)

// BuildService is the single entry point for turning a trigger event
// into an executing build. The per-script one-non-terminal-build
// invariant is enforced by the build store's conditional insert; the
// service translates the skipped insert into ErrBuildAlreadyRunning.
type BuildService struct {
	scriptStore store.ScriptStore
	buildStore  store.BuildStore
	broadcaster *Broadcaster
	executor    *Executor
	metrics     Recorder
}

func NewBuildService(
	scriptStore store.ScriptStore,
	buildStore store.BuildStore,
	broadcaster *Broadcaster,
	executor *Executor,
	metrics Recorder,
) *BuildService {
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	return &BuildService{
		scriptStore: scriptStore,
		buildStore:  buildStore,
		broadcaster: broadcaster,
		executor:    executor,
		metrics:     metrics,
	}
}

// Trigger creates a pending build for the script and hands it to an
// executor goroutine. It returns as soon as the build exists; callers
// may subscribe to the build's live stream immediately.
func (s *BuildService) Trigger(
	ctx context.Context,
	scriptID, source string,
	webhookPayload *string,
) (*store.Build, error) {
	script, err := s.scriptStore.ReadScriptByID(ctx, scriptID)
	if err != nil {
		return nil, err
	}

	build, err := s.buildStore.CreateBuild(
		ctx, uuid.NewString(), script.ScriptID, source, webhookPayload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewErrBuildAlreadyRunning(script.ScriptID)
		}
		return nil, err
	}

	// track before the executor starts so a subscription opened now
	// cannot miss the first chunk
	s.broadcaster.Track(build.BuildID)
	s.metrics.IncTrigger(source)

	go s.executor.Execute(context.Background(), script, build)

	return build, nil
}

// TriggerWebhook resolves the path-embedded token to its script and
// triggers a build with the webhook payload attached. An unknown token
// is reported as ErrInvalidWebhookToken with no further detail.
func (s *BuildService) TriggerWebhook(
	ctx context.Context,
	token string,
	payload *string,
) (*store.Build, *store.Script, error) {
	script, err := s.scriptStore.ReadScriptByWebhookToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, NewErrInvalidWebhookToken()
		}
		return nil, nil, err
	}

	build, err := s.Trigger(ctx, script.ScriptID, store.TriggerWebhook, payload)
	if err != nil {
		return nil, nil, err
	}
	return build, script, nil
}

// HasRunningBuild reports whether the script currently has a
// non-terminal build.
func (s *BuildService) HasRunningBuild(ctx context.Context, scriptID string) (bool, error) {
	n, err := s.buildStore.CountRunningBuilds(ctx, scriptID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *BuildService) GetBuildByID(ctx context.Context, buildID string) (*store.Build, error) {
	return s.buildStore.ReadBuildByID(ctx, buildID)
}

func (s *BuildService) ListScriptBuilds(
	ctx context.Context,
	scriptID string,
) ([]store.Build, error) {
	builds, err := s.buildStore.ListScriptBuilds(ctx, scriptID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return builds, nil
}

// DeleteBuild removes a terminal build and its durable log. An
// in-flight build cannot be deleted out from under its executor.
func (s *BuildService) DeleteBuild(ctx context.Context, buildID string) error {
	build, err := s.buildStore.ReadBuildByID(ctx, buildID)
	if err != nil {
		return err
	}
	if !build.Status.Terminal() {
		return NewErrBuildAlreadyRunning(build.BuildScriptID)
	}
	return s.buildStore.DeleteBuild(ctx, buildID)
}

// Subscribe attaches a live-output observer to a non-terminal build.
// ok is false when the build has already completed; the caller should
// serve the durable log instead.
func (s *BuildService) Subscribe(buildID string) (string, <-chan string, bool) {
	return s.broadcaster.Subscribe(buildID)
}

func (s *BuildService) Unsubscribe(buildID, subscriberID string) {
	s.broadcaster.Unsubscribe(buildID, subscriberID)
}

// ReconcileInterruptedBuilds fails any build left non-terminal by a
// previous process. Called once at startup before triggers are served.
func (s *BuildService) ReconcileInterruptedBuilds(ctx context.Context) (int64, error) {
	endedOn := time.Now().UTC()
	return s.buildStore.MarkInterruptedBuilds(ctx, &endedOn)
}
