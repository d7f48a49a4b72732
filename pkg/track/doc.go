// ABOUTME: Package documentation for track
// ABOUTME: Describes track values and load results
// Package track holds playable tracks and the results of loading them.
//
// A LoadResult is a closed set; switch on its concrete type:
//
//	res, err := node.LoadTracks(ctx, "ytsearch:lofi")
//	var le *track.LoadError
//	if errors.As(err, &le) { ... }
//	switch r := res.(type) {
//	case *track.Single:
//	case *track.Playlist:
//	case *track.Search:
//	case *track.Empty:
//	}
package track
