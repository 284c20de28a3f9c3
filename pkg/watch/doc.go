// Package watch keeps an eye on a job after its handoff.
//
// A Watcher lists jobs on a cron schedule ("@every 30s" by default) and
// reports whether the job is still claimed and by whom. Owner changes and
// a lost claim are logged and counted.
package watch
