// Package process runs external tools as supervised child processes.
//
// # Supervisor
//
// The Supervisor tracks live child processes and bounds how many may run
// at once. The lint orchestrator uses a limit of one, so a second spawn
// while a tool is still alive fails instead of running concurrently.
//
//	supervisor := process.NewSupervisor(process.WithMaxProcesses(1))
//	defer supervisor.Shutdown(5 * time.Second)
//
// A process is removed from tracking before its Done channel closes, so a
// caller that observed Done may start the next process immediately.
//
// # Runner
//
// The Runner launches a Command and streams everything the process writes
// to a Listener:
//
//	runner := process.NewRunner(supervisor, process.DefaultRunnerConfig())
//	id, err := runner.Launch(ctx, cmd, listener)
//	if err != nil {
//	    // spawn failure: no events will follow
//	}
//
// Output chunks arrive in emission order through OnProcessOutput, followed
// by exactly one OnProcessTerminated. Both callbacks run on a goroutine
// owned by the runner; listeners hand them off rather than block.
//
// # Graceful Shutdown
//
//	// Send SIGTERM, wait up to 5 seconds, then SIGKILL
//	supervisor.Shutdown(5 * time.Second)
package process
