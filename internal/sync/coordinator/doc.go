// Package coordinator runs the periodic background jobs of booking sync.
//
// Each job has its own ticker loop with a jittered interval so that several
// instances never hit the booking platform or the messenger at the same
// moment. The coordinator only schedules: what a job does is supplied by
// the caller (see SyncJob for the platform sync).
//
// # Lifecycle
//
//	c := coordinator.New([]coordinator.Job{
//	    coordinator.SyncJob(orchestrator, 30*time.Minute),
//	    {Name: "dispatch", Interval: 5 * time.Minute, Run: dispatcher.Run},
//	})
//	go c.Start(ctx) // blocks until ctx is cancelled or Stop is called
//	...
//	c.Stop()
//
// # Error Handling
//
// A failing or panicking job is logged and retried on its next tick; it
// never stops the coordinator or the other jobs.
package coordinator
