// ABOUTME: Package documentation for filter
// ABOUTME: Describes filter kinds and the chain
// Package filter describes audio filters applied on the node.
//
// A Chain holds at most one filter per Kind; setting a filter replaces the
// previous one of the same kind and leaves the others alone.
//
//	chain := filter.NewChain(filter.NewEqualizer(0.2, 0.15, 0.1), filter.Timescale{Speed: 1.2, Pitch: 1, Rate: 1})
//	err := player.SetFilters(ctx, chain)
package filter
