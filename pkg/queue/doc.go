// ABOUTME: Package documentation for queue
// ABOUTME: Explains loop modes and advance rules
// Package queue provides the per-player track queue.
//
// Next returns the head of the queue. What happens to it depends on the
// loop mode: LoopOff moves it to history, LoopTrack leaves it at the head so
// it plays again, and LoopQueue moves it to the tail.
package queue
