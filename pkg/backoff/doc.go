// ABOUTME: Package documentation for backoff
// ABOUTME: Describes the reconnect delay policy
// Package backoff computes reconnect delays for node connections.
//
// Delays double from Base up to Max, with the upper half of each delay
// randomized so many clients reconnecting at once spread out. A bounded
// policy (MaxTries > 0) reports exhaustion instead of a delay.
//
//	b := backoff.New(backoff.Config{Base: time.Second, Max: time.Minute, MaxTries: 5})
//	for {
//	    d, ok := b.Next()
//	    if !ok {
//	        break
//	    }
//	    time.Sleep(d)
//	}
package backoff
