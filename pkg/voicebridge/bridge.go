// ABOUTME: Forwards Discord gateway voice events to players
// ABOUTME: Hooks discordgo handlers and joins or leaves voice channels
package voicebridge

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/lavaclient/lava-go/pkg/lava"
)

const defaultTimeout = 10 * time.Second

// Players finds the player for a guild. *lava.Pool satisfies it.
type Players interface {
	Player(guildID snowflake.ID) (*lava.Player, bool)
}

type Config struct {
	// UserID is the bot user. When zero the session state's user is used.
	UserID snowflake.ID
	// Timeout bounds each voice update sent to a node. Default 10s.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Bridge routes voice state and voice server updates to players.
type Bridge struct {
	players Players
	config  Config
	log     zerolog.Logger
}

func New(players Players, config Config) *Bridge {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Bridge{
		players: players,
		config:  config,
		log:     config.Logger.With().Str("component", "voicebridge").Logger(),
	}
}

// Register adds the bridge's handlers to s and returns a function that
// removes them.
func (b *Bridge) Register(s *discordgo.Session) func() {
	removeState := s.AddHandler(b.VoiceStateUpdate)
	removeServer := s.AddHandler(b.VoiceServerUpdate)
	return func() {
		removeState()
		removeServer()
	}
}

// VoiceStateUpdate handles the bot's own voice state changes.
func (b *Bridge) VoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil || !b.isSelf(s, v.UserID) {
		return
	}

	p, ok := b.player(v.GuildID)
	if !ok {
		return
	}

	update := lava.VoiceStateUpdate{SessionID: v.SessionID}
	if v.ChannelID != "" {
		channelID, err := snowflake.Parse(v.ChannelID)
		if err != nil {
			b.log.Warn().Err(err).Str("channel", v.ChannelID).Msg("bad channel id")
			return
		}
		update.ChannelID = &channelID
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.Timeout)
	defer cancel()
	if err := p.UpdateVoiceState(ctx, update); err != nil {
		b.log.Error().Err(err).Stringer("guild", p.GuildID()).Msg("voice state update failed")
	}
}

// VoiceServerUpdate handles voice server assignments.
func (b *Bridge) VoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	if v == nil {
		return
	}

	p, ok := b.player(v.GuildID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.Timeout)
	defer cancel()
	err := p.UpdateVoiceServer(ctx, lava.VoiceServerUpdate{Token: v.Token, Endpoint: v.Endpoint})
	if err != nil {
		b.log.Error().Err(err).Stringer("guild", p.GuildID()).Msg("voice server update failed")
	}
}

// Join asks the gateway to move the bot into a voice channel. The resulting
// voice events reach the guild's player through the handlers.
func (b *Bridge) Join(s *discordgo.Session, guildID, channelID snowflake.ID) error {
	if err := s.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true); err != nil {
		return fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return nil
}

// Leave disconnects the bot from voice in the guild.
func (b *Bridge) Leave(s *discordgo.Session, guildID snowflake.ID) error {
	if err := s.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("leave voice in guild %s: %w", guildID, err)
	}
	return nil
}

func (b *Bridge) isSelf(s *discordgo.Session, userID string) bool {
	if b.config.UserID != 0 {
		return userID == b.config.UserID.String()
	}
	if s == nil || s.State == nil || s.State.User == nil {
		return false
	}
	return userID == s.State.User.ID
}

func (b *Bridge) player(rawGuildID string) (*lava.Player, bool) {
	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", rawGuildID).Msg("bad guild id")
		return nil, false
	}
	p, ok := b.players.Player(guildID)
	if !ok {
		b.log.Debug().Stringer("guild", guildID).Msg("voice update for guild without player")
	}
	return p, ok
}
