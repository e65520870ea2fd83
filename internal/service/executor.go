package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/util"
)

// Executor runs one build at a time to a terminal status. It is the
// only writer of an in-flight build's output and status; everything
// else observes through the broadcaster or the durable log.
type Executor struct {
	scriptStore store.ScriptStore
	buildStore  store.BuildStore
	broadcaster *Broadcaster
	metrics     Recorder

	// Shell invoked with the script file as its single argument.
	shell     string
	buildsDir string
	// Zero disables the timeout.
	timeout time.Duration
}

func NewExecutor(
	scriptStore store.ScriptStore,
	buildStore store.BuildStore,
	broadcaster *Broadcaster,
	metrics Recorder,
	shell, buildsDir string,
	timeout time.Duration,
) *Executor {
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	return &Executor{
		scriptStore: scriptStore,
		buildStore:  buildStore,
		broadcaster: broadcaster,
		metrics:     metrics,
		shell:       shell,
		buildsDir:   buildsDir,
		timeout:     timeout,
	}
}

// Execute runs the script content of the given build and blocks until
// the build is terminal. The terminal status, exit code and last-run
// update are written on every exit path, including faults.
func (e *Executor) Execute(ctx context.Context, script *store.Script, build *store.Build) {
	status := store.StatusFailure
	var exitCode *int64

	started := time.Now().UTC()
	if err := e.buildStore.UpdateBuildStartedOn(
		ctx, build.BuildID, store.StatusRunning, &started,
	); err != nil {
		log.Println("err updating build started on:", err)
	}

	e.metrics.AddBuildsInFlight(1)
	defer func() {
		ended := time.Now().UTC()
		if err := e.buildStore.UpdateBuildEndedOn(
			context.Background(), build.BuildID, status, exitCode, &ended,
		); err != nil {
			log.Println("err updating build ended on:", err)
		}
		if err := e.scriptStore.UpdateScriptLastRun(
			context.Background(), script.ScriptID, &ended,
		); err != nil {
			log.Println("err updating script last run:", err)
		}
		e.broadcaster.Complete(build.BuildID)
		e.metrics.AddBuildsInFlight(-1)
		e.metrics.IncBuildOutcome(string(status))
		e.metrics.ObserveBuildDuration(ended.Sub(started))
	}()

	code, err := e.runScript(ctx, script, build)
	if err != nil {
		e.emit(build.BuildID, fmt.Sprintf("ERROR: %v\n", err))
		if code >= 0 {
			exitCode = util.AsPtr(code)
		}
		return
	}

	exitCode = util.AsPtr(code)
	if code == 0 {
		status = store.StatusSuccess
		return
	}
	e.emit(build.BuildID, fmt.Sprintf("build failed with exit code %d\n", code))
}

// runScript writes the script content into a per-build work directory,
// executes it and streams combined stdout/stderr line by line. The
// returned exit code is -1 when the process never produced one.
func (e *Executor) runScript(
	ctx context.Context,
	script *store.Script,
	build *store.Build,
) (int64, error) {
	workdir := filepath.Join(
		e.buildsDir,
		time.Now().UTC().Format(internal.BuildDirLayout)+"_"+build.BuildID,
	)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return -1, err
	}

	scriptPath := filepath.Join(workdir, "script")
	if err := os.WriteFile(scriptPath, []byte(script.Content), 0o700); err != nil {
		return -1, err
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.shell, scriptPath)
	cmd.Dir = workdir
	// a background child inherits the output pipes; without a wait
	// bound it would keep Wait blocked until the grandchild exits
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		"BUILD_ID="+build.BuildID,
		"SCRIPT_ID="+script.ScriptID,
	)
	if build.WebhookPayload != nil {
		cmd.Env = append(cmd.Env, "WEBHOOK_PAYLOAD="+*build.WebhookPayload)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return -1, err
	}

	// scan output produced by the command and append it to the durable
	// log while fanning it out to live subscribers
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			e.emit(build.BuildID, scanner.Text()+"\n")
		}
	}()

	waitErr := cmd.Wait()
	pw.Close()
	<-scanDone

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf(
			"build timed out after %d seconds", int(e.timeout.Seconds()),
		)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			return int64(exitErr.ExitCode()), nil
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// the shell exited but a grandchild still held the pipes
			// when the wait bound expired; the exit code is known
			return int64(cmd.ProcessState.ExitCode()), nil
		}
		return -1, waitErr
	}

	return int64(cmd.ProcessState.ExitCode()), nil
}

func (e *Executor) emit(buildID, out string) {
	if err := e.buildStore.AppendBuildOutput(context.Background(), buildID, out); err != nil {
		log.Printf("err appending build output: %+v\n", err)
	}
	e.broadcaster.Publish(buildID, out)
}
