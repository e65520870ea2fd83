package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/store"
	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

type Triggerer interface {
	Trigger(ctx context.Context, scriptID, source string, payload *string) (*store.Build, error)
}

// CronService is the process-wide scheduling loop. One tick per minute
// reads every enabled schedule, dispatches the due ones and advances
// their next_run. A tick never blocks on a dispatch and never retries
// missed occurrences.
type CronService struct {
	scriptStore store.ScriptStore
	buildStore  store.BuildStore
	trigger     Triggerer
	scheduler   gocron.Scheduler

	tickInterval time.Duration
	// Terminal builds older than this are pruned daily.
	retention time.Duration
	now       func() time.Time
}

func NewCronService(
	scriptStore store.ScriptStore,
	buildStore store.BuildStore,
	trigger Triggerer,
	scheduler gocron.Scheduler,
	retention time.Duration,
) *CronService {
	return &CronService{
		scriptStore:  scriptStore,
		buildStore:   buildStore,
		trigger:      trigger,
		scheduler:    scheduler,
		tickInterval: time.Minute,
		retention:    retention,
		now:          time.Now,
	}
}

// Start registers the tick and retention jobs and starts the scheduler.
// Called once at host boot.
func (cs *CronService) Start() error {
	if _, err := cs.scheduler.NewJob(
		gocron.DurationJob(cs.tickInterval),
		gocron.NewTask(cs.tick),
		gocron.WithName("schedule-tick"),
	); err != nil {
		return err
	}
	if _, err := cs.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(cs.cleanUpBuilds),
		gocron.WithName("build-retention"),
	); err != nil {
		return err
	}
	cs.scheduler.Start()
	return nil
}

func (cs *CronService) Shutdown() error {
	return cs.scheduler.Shutdown()
}

func (cs *CronService) tick() {
	ctx := context.Background()
	scripts, err := cs.scriptStore.ListScheduledScripts(ctx)
	if err != nil {
		log.Println("err listing scheduled scripts:", err)
		return
	}

	now := cs.now().UTC()
	for _, script := range scripts {
		cs.evaluate(ctx, script, now)
	}
}

func (cs *CronService) evaluate(ctx context.Context, script *store.Script, now time.Time) {
	if script.ScheduleCron == nil {
		return
	}
	schedule, err := cron.ParseStandard(*script.ScheduleCron)
	if err != nil {
		// expressions are validated at save time, so a parse failure
		// here means the row was edited out of band
		log.Printf("err parsing persisted cron for script %s: %v\n", script.ScriptID, err)
		return
	}

	if script.NextRun == nil {
		next := schedule.Next(now)
		if err := cs.scriptStore.UpdateScriptNextRun(ctx, script.ScriptID, &next); err != nil {
			log.Println("err repairing script next run:", err)
		}
		return
	}
	if script.NextRun.After(now) {
		return
	}

	// dispatch without blocking the tick; an in-flight build skips this
	// occurrence, there is no catch-up queue
	scriptID := script.ScriptID
	go func() {
		source := store.TriggerSchedulePrefix + scriptID
		if _, err := cs.trigger.Trigger(context.Background(), scriptID, source, nil); err != nil {
			var alreadyRunning *ErrBuildAlreadyRunning
			if errors.As(err, &alreadyRunning) {
				log.Printf("skipping scheduled build for script %s: build in progress\n", scriptID)
				return
			}
			log.Println("err triggering scheduled build:", err)
		}
	}()

	next := schedule.Next(now)
	if err := cs.scriptStore.UpdateScriptNextRun(ctx, script.ScriptID, &next); err != nil {
		log.Println("err updating script next run:", err)
	}
}

func (cs *CronService) cleanUpBuilds() {
	cutoff := cs.now().UTC().Add(-cs.retention)
	n, err := cs.buildStore.DeleteBuildsBefore(context.Background(), cutoff)
	if err != nil {
		log.Println("err deleting expired builds:", err)
		return
	}
	if n > 0 {
		log.Printf("deleted %d builds older than %s\n", n, cutoff.Format(time.DateTime))
	}
}
