// ABOUTME: mDNS service discovery package
// ABOUTME: Discover and advertise Lavalink nodes on the local network
// Package discovery finds Lavalink nodes announced over mDNS.
//
// Nodes are announced as _lavalink._tcp with optional "version" and
// "secure" TXT records.
//
// Example:
//
//	mgr := discovery.NewManager(discovery.Config{})
//	mgr.Browse()
//	for node := range mgr.Nodes() {
//	    fmt.Printf("Found: %s at %s\n", node.Name, node.Addr())
//	}
package discovery
