// ABOUTME: High-level Lavalink client API
// ABOUTME: Nodes, a load balancing pool and per-guild players
// Package lava is the main entry point for talking to Lavalink nodes.
//
// It provides:
//   - Node: one remote node, its WebSocket session and REST client
//   - Pool: several nodes with least-loaded selection
//   - Player: playback for one guild, with a queue and filters
//
// For lower-level control, see the protocol, track, filter and queue packages.
//
// Example:
//
//	pool := lava.NewPool(lava.PoolConfig{OnEvent: handle})
//	_, err := pool.AddNode(ctx, lava.NodeConfig{
//	    Host:     "localhost",
//	    Password: "youshallnotpass",
//	    UserID:   botID,
//	})
//	player, err := pool.CreatePlayer(guildID)
//	// feed gateway voice updates with UpdateVoiceState/UpdateVoiceServer
//	result, err := player.Node().LoadTracks(ctx, "ytsearch:never gonna give you up")
//	err = player.Play(ctx, result.All()[0])
package lava
