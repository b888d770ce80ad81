// Package batch schedules watermark jobs.
//
// A run picks one Strategy up front. Sequential processes jobs in listing
// order on the calling goroutine; SharedMemoryPool runs a bounded number of
// goroutines; IsolatedMemoryPool hands jobs to long-lived worker processes
// (the same binary started with the hidden worker command) so each worker's
// memory reclamation acts on its own heap.
//
// The first failing job ends the run: nothing new is dispatched, jobs already
// in flight are allowed to finish, and Run returns a *RunError naming the
// failed source path.
package batch
