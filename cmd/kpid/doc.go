// Command kpid is the operator CLI for the moderation daemon. Read commands
// talk to the daemon's HTTP API when it is running and fall back to direct
// queue database access when it is not. `kpid daemon run` hosts the daemon
// in the foreground.
package main
