/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/session"
)

const envPrefix = "GRAFFITI"

type Config struct {
	bind       string
	port       int
	prefix     string
	profile    bool
	tlsCert    string
	tlsKey     string
	verbose    bool
	version    bool
	logFile    string
	frameRate  float64
	frameBurst int

	bot BotConfig
}

// BotConfig drives the headless host and join commands.
type BotConfig struct {
	broker        string
	name          string
	teams         int
	wall          string
	questions     string
	accuracy      float64
	sprayInterval time.Duration
	tick          time.Duration
	minPlayers    int
	rounds        int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.frameRate <= 0 {
		return fmt.Errorf("invalid frame rate (must be positive): %v", c.frameRate)
	}
	if c.frameBurst < 1 {
		return fmt.Errorf("invalid frame burst (must be at least 1): %d", c.frameBurst)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (b *BotConfig) validate() error {
	u, err := url.Parse(b.broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid broker url: %q", b.broker)
	}
	if b.teams < 1 || b.teams > graffiti.TeamCapacity {
		return fmt.Errorf("invalid team count (must be between 1-%d inclusive): %d", graffiti.TeamCapacity, b.teams)
	}
	if !graffiti.WallType(b.wall).Valid() {
		return fmt.Errorf("%w: %q", graffiti.ErrInvalidWall, b.wall)
	}
	if b.accuracy < 0 || b.accuracy > 1 {
		return fmt.Errorf("invalid accuracy (must be between 0-1 inclusive): %v", b.accuracy)
	}
	if b.sprayInterval <= 0 {
		return fmt.Errorf("invalid spray interval: %s", b.sprayInterval)
	}
	if b.minPlayers < 1 {
		return fmt.Errorf("invalid minimum player count: %d", b.minPlayers)
	}
	if b.rounds < 1 {
		return fmt.Errorf("invalid round count: %d", b.rounds)
	}
	return nil
}

// bindFlags lets every flag in fs be set from GRAFFITI_<NAME>, with dashes
// read as underscores. Flags given on the command line win.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "graffiti",
		Short:         "Signalling broker and headless peers for the graffiti party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		// Runs for every sub-command too; their flags include the
		// persistent ones by now.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return ServePage(cmd.Context(), cfg, log)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.SetNormalizeFunc(normalizeFlags)

	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GRAFFITI_VERBOSE)")
	pfs.StringVar(&cfg.logFile, "log-file", "", "also write logs to this file, rotated as it grows (env: GRAFFITI_LOG_FILE)")

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlags)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GRAFFITI_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GRAFFITI_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GRAFFITI_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GRAFFITI_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GRAFFITI_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GRAFFITI_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GRAFFITI_VERSION)")
	fs.Float64Var(&cfg.frameRate, "frame-rate", 200, "frames per second one endpoint may push through the broker (env: GRAFFITI_FRAME_RATE)")
	fs.IntVar(&cfg.frameBurst, "frame-burst", 400, "frames one endpoint may push in a burst (env: GRAFFITI_FRAME_BURST)")

	cmd.AddCommand(newHostCmd(cfg), newJoinCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("graffiti v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func botFlags(fs *pflag.FlagSet, b *BotConfig) {
	fs.SetNormalizeFunc(normalizeFlags)

	fs.StringVar(&b.broker, "broker", "http://localhost:8080", "base url of the signalling broker (env: GRAFFITI_BROKER)")
	fs.StringVarP(&b.name, "name", "n", "", "player name (env: GRAFFITI_NAME)")
	fs.Float64Var(&b.accuracy, "accuracy", 0.7, "chance of answering a question correctly (env: GRAFFITI_ACCURACY)")
	fs.DurationVar(&b.sprayInterval, "spray-interval", 50*time.Millisecond, "time between spray actions (env: GRAFFITI_SPRAY_INTERVAL)")
	fs.StringVar(&b.questions, "questions", "", "yaml, json or toml file of questions to use instead of the built-in bank (env: GRAFFITI_QUESTIONS)")
}

func newHostCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a room and play it as the host.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.bot.validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return runHost(cmd.Context(), cfg, log)
		},
	}

	fs := cmd.Flags()
	botFlags(fs, &cfg.bot)

	fs.IntVar(&cfg.bot.teams, "teams", graffiti.DefaultTeamCount, "number of teams (env: GRAFFITI_TEAMS)")
	fs.StringVar(&cfg.bot.wall, "wall", string(graffiti.WallSchool), "wall to paint: school, subway, police or parking (env: GRAFFITI_WALL)")
	fs.IntVar(&cfg.bot.minPlayers, "min-players", 2, "players, host included, needed before the game starts (env: GRAFFITI_MIN_PLAYERS)")
	fs.IntVar(&cfg.bot.rounds, "rounds", 1, "games to play before closing the room (env: GRAFFITI_ROUNDS)")
	fs.DurationVar(&cfg.bot.tick, "tick", time.Second, "length of one countdown second (env: GRAFFITI_TICK)")

	return cmd
}

func newJoinCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a room and play until the leaderboard.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Host-only settings have no flags here.
			cfg.bot.teams, cfg.bot.wall = graffiti.DefaultTeamCount, string(graffiti.WallSchool)
			cfg.bot.minPlayers, cfg.bot.rounds = 1, 1

			if err := cfg.bot.validate(); err != nil {
				return err
			}
			if code := session.NormalizeCode(args[0]); !session.ValidCode(code) {
				return fmt.Errorf("%w: %q", session.ErrRoomNotFound, args[0])
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return runJoin(cmd.Context(), cfg, args[0], log)
		},
	}

	botFlags(cmd.Flags(), &cfg.bot)

	return cmd
}
