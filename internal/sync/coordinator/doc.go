// Package coordinator runs tiny-sync invocations on cron schedules.
//
// Each configured job names an entity, a cron expression and whether the
// run is a dry run. Jobs are executed through the same Runner that serves
// HTTP requests, with the run log attributed to SchedulerActor.
//
// A job that is still running when its next tick fires is skipped rather
// than queued. Across replicas the orchestrator's run lock decides which
// instance reconciles; the losers see a conflict, which is logged at info
// level.
//
// # Usage
//
//	coord, err := coordinator.New(orchestrator, cfg.Schedule)
//	if err != nil {
//	    return err
//	}
//	go coord.Start(ctx)
//	// ... run server ...
//	coord.Stop()
package coordinator
