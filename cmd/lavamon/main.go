// ABOUTME: Entry point for lavamon, a Lavalink node and player monitor
// ABOUTME: Parses flags, connects the node pool and runs the dashboard
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/lavaclient/lava-go/internal/config"
	"github.com/lavaclient/lava-go/internal/ui"
	"github.com/lavaclient/lava-go/internal/version"
	"github.com/lavaclient/lava-go/pkg/discovery"
	"github.com/lavaclient/lava-go/pkg/lava"
	"github.com/lavaclient/lava-go/pkg/track"
	"github.com/lavaclient/lava-go/pkg/voicebridge"
)

var (
	envFile    = flag.String("env", ".env", "Environment file to read before the process environment")
	logFile    = flag.String("log-file", "lavamon.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	discover   = flag.Bool("discover", false, "Add nodes found over mDNS")
	advertise  = flag.Int("advertise", 0, "Advertise a node on this port over mDNS (0 disables)")
	guildFlag  = flag.String("guild", "", "Guild to join when a Discord token is set")
	channelArg = flag.String("channel", "", "Voice channel to join in -guild")
	query      = flag.String("play", "", "Identifier or search query to queue after joining")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lavamon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out io.Writer = f
	if !useTUI {
		// Streaming logs mode: log to both stdout and file
		out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}, f)
	}
	log := zerolog.New(out).Level(level).With().Timestamp().Logger()

	log.Info().Str("version", version.Version).Int("nodes", len(cfg.Nodes)).Msg("starting lavamon")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// TUI setup
	var (
		prog *tea.Program
		ctrl *ui.Control
	)
	if useTUI {
		ctrl = ui.NewControl()
		prog, err = ui.Run(ctrl)
		if err != nil {
			return fmt.Errorf("start TUI: %w", err)
		}
		go func() {
			if _, err := prog.Run(); err != nil {
				log.Error().Err(err).Msg("TUI stopped")
			}
			cancel()
		}()
	}

	pool := lava.NewPool(lava.PoolConfig{
		Logger: log,
		OnEvent: func(e lava.Event) {
			if prog == nil {
				return
			}
			for _, msg := range ui.FromEvent(e) {
				prog.Send(msg)
			}
		},
	})
	defer func() {
		closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := pool.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("closing pool")
		}
	}()

	for _, nc := range cfg.NodeConfigs() {
		if _, err := pool.AddNode(ctx, nc); err != nil {
			log.Warn().Err(err).Str("node", nc.ID).Msg("node not connected yet")
		}
	}

	if *discover || cfg.Discover || *advertise > 0 {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: "lavamon",
			Port:        *advertise,
			Version:     cfg.Version,
			Secure:      cfg.Secure,
			Logger:      log,
		})
		defer disc.Stop()

		if *advertise > 0 {
			if err := disc.Advertise(); err != nil {
				log.Warn().Err(err).Msg("mDNS advertisement failed")
			}
		}
		if *discover || cfg.Discover {
			disc.Browse()
			go addDiscovered(ctx, pool, cfg, disc, log)
		}
	}

	if cfg.DiscordToken != "" {
		stop, err := startDiscord(ctx, pool, cfg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	if ctrl != nil {
		go handleCommands(ctx, pool, ctrl, log, cancel)
		go positionLoop(ctx, pool, prog)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if prog != nil {
		prog.Quit()
	}
	return nil
}

// addDiscovered adds every node the browser finds to the pool.
func addDiscovered(ctx context.Context, pool *lava.Pool, cfg *config.Config, disc *discovery.Manager, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case info := <-disc.Nodes():
			nc := cfg.NodeConfig()
			nc.ID = info.Name
			if nc.ID == "" {
				nc.ID = info.Addr()
			}
			nc.Host = info.Host
			nc.Port = info.Port
			nc.Version = info.Version
			nc.Secure = info.Secure

			log.Info().Str("node", nc.ID).Str("addr", info.Addr()).Msg("discovered node")
			if _, err := pool.AddNode(ctx, nc); err != nil {
				if errors.Is(err, lava.ErrNodeExists) {
					continue
				}
				log.Warn().Err(err).Str("node", nc.ID).Msg("adding discovered node")
			}
		}
	}
}

// startDiscord opens a gateway session, wires voice events to the pool and
// optionally joins -channel in -guild and queues -play.
func startDiscord(ctx context.Context, pool *lava.Pool, cfg *config.Config, log zerolog.Logger) (func(), error) {
	s, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	bridge := voicebridge.New(pool, voicebridge.Config{
		UserID: snowflake.ID(cfg.UserID),
		Logger: log,
	})
	remove := bridge.Register(s)

	if err := s.Open(); err != nil {
		remove()
		return nil, fmt.Errorf("discord gateway: %w", err)
	}
	stop := func() {
		remove()
		_ = s.Close()
	}

	if *guildFlag == "" || *channelArg == "" {
		return stop, nil
	}
	guildID, err := snowflake.Parse(*guildFlag)
	if err != nil {
		stop()
		return nil, fmt.Errorf("invalid -guild: %w", err)
	}
	channelID, err := snowflake.Parse(*channelArg)
	if err != nil {
		stop()
		return nil, fmt.Errorf("invalid -channel: %w", err)
	}

	player, err := pool.CreatePlayer(guildID)
	if err != nil {
		stop()
		return nil, err
	}
	if err := bridge.Join(s, guildID, channelID); err != nil {
		stop()
		return nil, err
	}

	if *query != "" {
		go queueQuery(ctx, player, *query, log)
	}
	return func() {
		_ = bridge.Leave(s, guildID)
		stop()
	}, nil
}

// queueQuery loads query on the player's node, queues the results and
// starts the first one.
func queueQuery(ctx context.Context, p *lava.Player, query string, log zerolog.Logger) {
	node := p.Node()
	if node == nil {
		return
	}
	identifier := query
	if !strings.Contains(query, "://") && !strings.Contains(query, "search:") {
		identifier = "ytsearch:" + query
	}

	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	result, err := node.LoadTracks(loadCtx, identifier)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("loading tracks")
		return
	}

	tracks := result.All()
	if len(tracks) == 0 {
		log.Warn().Str("query", query).Msg("no matches")
		return
	}
	if _, ok := result.(*track.Search); ok {
		tracks = tracks[:1]
	}
	p.Queue().Add(tracks...)

	// Voice credentials arrive asynchronously after the join.
	for ctx.Err() == nil {
		if p.Voice().Complete() {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if err := p.PlayNext(ctx); err != nil {
		log.Error().Err(err).Msg("starting playback")
	}
}

// handleCommands applies dashboard key presses to players.
func handleCommands(ctx context.Context, pool *lava.Pool, ctrl *ui.Control, log zerolog.Logger, quit context.CancelFunc) {
	for {
		var cmd ui.Command
		select {
		case <-ctx.Done():
			return
		case cmd = <-ctrl.Commands:
		}
		if cmd.Kind == ui.CommandQuit {
			quit()
			return
		}

		p, ok := pool.Player(cmd.Guild)
		if !ok {
			continue
		}
		cmdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		var err error
		switch cmd.Kind {
		case ui.CommandTogglePause:
			if p.Paused() {
				err = p.Resume(cmdCtx)
			} else {
				err = p.Pause(cmdCtx)
			}
		case ui.CommandSkip:
			err = p.PlayNext(cmdCtx)
		case ui.CommandVolume:
			err = p.SetVolume(cmdCtx, cmd.Volume)
		}
		cancel()
		if err != nil {
			log.Warn().Err(err).Stringer("guild", cmd.Guild).Msg("dashboard command failed")
		}
	}
}

// positionLoop refreshes interpolated positions between player updates.
func positionLoop(ctx context.Context, pool *lava.Pool, prog *tea.Program) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range pool.Players() {
				if p.State() == lava.StatePlaying {
					prog.Send(ui.PlayerMsg{Guild: p.GuildID(), Position: p.Position()})
				}
			}
		}
	}
}
