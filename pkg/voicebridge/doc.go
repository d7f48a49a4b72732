// ABOUTME: Discord voice event bridge package
// ABOUTME: Feeds gateway voice credentials into lava players
// Package voicebridge connects a discordgo session to lava players.
//
// Lavalink needs the bot's voice session id and the voice server token and
// endpoint for every guild it plays in. Discord delivers these as
// VOICE_STATE_UPDATE and VOICE_SERVER_UPDATE gateway events; the Bridge
// forwards them to the guild's player.
//
//	bridge := voicebridge.New(pool, voicebridge.Config{Logger: log})
//	defer bridge.Register(session)()
//	player, _ := pool.CreatePlayer(guildID)
//	err := bridge.Join(session, guildID, channelID)
package voicebridge
