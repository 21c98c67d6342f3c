/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/graffiti/games/graffiti"
	"github.com/Seednode/graffiti/session"
	"github.com/Seednode/graffiti/transport"
)

// lingerFor is how long a host waits for clients to see the final
// leaderboard and leave before it closes the room.
const lingerFor = 3 * time.Second

// bot plays one peer without a human: it answers whatever question is up,
// then walks a spray across the wall until the can runs dry.
type bot struct {
	s        *session.Session
	log      *zap.Logger
	rng      *rand.Rand
	accuracy float64
	interval time.Duration

	x, y float64
}

func newBot(s *session.Session, bc BotConfig, log *zap.Logger) *bot {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	return &bot{
		s:        s,
		log:      log,
		rng:      rng,
		accuracy: bc.accuracy,
		interval: bc.sprayInterval,
		x:        rng.Float64(),
		y:        rng.Float64(),
	}
}

// watch logs phase changes until the session's update stream closes.
func (b *bot) watch() {
	for u := range b.s.Updates() {
		switch u.Kind {
		case session.UpdatePhase:
			b.log.Info("phase changed", zap.String("phase", string(u.Phase)))
		case session.UpdateError, session.UpdateHostLost:
			b.log.Warn(session.UserMessage(u.Err), zap.Error(u.Err))
		}
	}
}

// pick answers q correctly with probability accuracy.
func (b *bot) pick(q graffiti.Question) int {
	if len(q.Options) < 2 || b.rng.Float64() < b.accuracy {
		return q.CorrectIndex
	}

	wrong := b.rng.IntN(len(q.Options) - 1)
	if wrong >= q.CorrectIndex {
		wrong++
	}
	return wrong
}

func (b *bot) step() (float64, float64) {
	const stride = 0.03

	b.x = min(1, max(0, b.x+(b.rng.Float64()-0.5)*stride))
	b.y = min(1, max(0, b.y+(b.rng.Float64()-0.5)*stride))

	return b.x, b.y
}

// ignorable reports errors caused by the phase moving on between reading
// the view and acting on it.
func ignorable(err error) bool {
	return errors.Is(err, session.ErrWrongPhase) ||
		errors.Is(err, session.ErrNoCan) ||
		errors.Is(err, session.ErrNoTeam) ||
		errors.Is(err, session.ErrAlreadyAnswered) ||
		errors.Is(err, session.ErrOutOfQuestions)
}

func (b *bot) act(ctx context.Context, v session.View) error {
	if v.State.Phase != graffiti.PhasePlaying {
		return nil
	}

	var err error
	switch {
	case v.Local.CanSpray():
		x, y := b.step()
		_, err = b.s.Spray(ctx, x, y)
	case v.Question != nil && !v.Local.HasAnswered:
		var correct bool
		correct, err = b.s.AnswerQuestion(ctx, b.pick(*v.Question))
		if err == nil {
			b.log.Debug("answered", zap.Int("question", v.Question.ID), zap.Bool("correct", correct))
		}
	}

	if err != nil && !ignorable(err) {
		return err
	}
	return nil
}

// until plays every interval until done holds for the session's view.
func (b *bot) until(ctx context.Context, done func(session.View) bool) (session.View, error) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		v, err := b.s.View(ctx)
		if err != nil {
			return v, err
		}
		if done(v) {
			return v, nil
		}
		if v.Err != nil {
			return v, v.Err
		}

		if err := b.act(ctx, v); err != nil {
			return v, err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

func (b *bot) logLeaderboard(v session.View) {
	for i, t := range v.Leaderboard {
		b.log.Info("standing",
			zap.Int("rank", i+1),
			zap.String("team", t.Name),
			zap.Float64("territory", t.TerritoryPercent),
			zap.Int("players", len(t.PlayerIDs)),
		)
	}
}

func inPhase(p graffiti.Phase) func(session.View) bool {
	return func(v session.View) bool { return v.State.Phase == p }
}

// printInvite writes the room code, the command that joins it and a
// terminal QR code of the room's status link. The status link only reports
// whether the room is open; joining always goes through the join command.
func printInvite(w io.Writer, broker, code string) error {
	broker = strings.TrimSuffix(broker, "/")
	url := broker + "/rooms/" + code

	qr, err := qrcode.New(url, qrcode.Low)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Room code: %s\nJoin with: graffiti join %s --broker %s\nStatus: %s\n%s\n",
		code, code, broker, url, qr.ToSmallString(false))
	return err
}

// hostGame creates a room on net and plays bc.rounds games in it. invite is
// called once with the room code.
func hostGame(ctx context.Context, net transport.Network, bc BotConfig, log *zap.Logger, invite func(code string) error) error {
	qs, err := loadQuestions(bc.questions)
	if err != nil {
		return err
	}

	s, err := session.Create(ctx, net, session.Options{
		PlayerName:   bc.name,
		Logger:       log.Named("session"),
		TickInterval: bc.tick,
		Questions:    qs,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	b := newBot(s, bc, log.With(zap.String("room", s.Code())))
	go b.watch()

	if err := invite(s.Code()); err != nil {
		return err
	}

	if err := s.SetWallType(ctx, graffiti.WallType(bc.wall)); err != nil {
		return err
	}
	if err := s.SetTeamCount(ctx, bc.teams); err != nil {
		return err
	}

	for round := 1; round <= bc.rounds; round++ {
		b.log.Info("waiting for players", zap.Int("round", round), zap.Int("needed", bc.minPlayers))

		if _, err := b.until(ctx, func(v session.View) bool { return len(v.State.Players) >= bc.minPlayers }); err != nil {
			return err
		}

		if err := s.StartGame(ctx); err != nil {
			return err
		}

		v, err := b.until(ctx, inPhase(graffiti.PhaseLeaderboard))
		if err != nil {
			return err
		}
		b.logLeaderboard(v)

		if round < bc.rounds {
			if err := s.ReturnToLobby(ctx); err != nil {
				return err
			}
		}
	}

	lctx, cancel := context.WithTimeout(ctx, lingerFor)
	defer cancel()

	_, err = b.until(lctx, func(v session.View) bool { return len(v.State.Players) <= 1 })
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// joinGame joins room code on net and plays until the leaderboard.
func joinGame(ctx context.Context, net transport.Network, bc BotConfig, code string, log *zap.Logger) error {
	qs, err := loadQuestions(bc.questions)
	if err != nil {
		return err
	}

	s, err := session.Join(ctx, net, code, session.Options{
		PlayerName: bc.name,
		Logger:     log.Named("session"),
		Questions:  qs,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	b := newBot(s, bc, log.With(zap.String("room", s.Code()), zap.String("id", s.SelfID())))
	go b.watch()

	v, err := b.until(ctx, inPhase(graffiti.PhaseLeaderboard))
	if err != nil {
		return err
	}
	b.logLeaderboard(v)

	return nil
}

func runHost(ctx context.Context, cfg *Config, log *zap.Logger) error {
	net, err := transport.NewWebSocketNetwork(cfg.bot.broker, log.Named("transport"))
	if err != nil {
		return err
	}

	err = hostGame(ctx, net, cfg.bot, log, func(code string) error {
		return printInvite(os.Stdout, cfg.bot.broker, code)
	})
	if err != nil {
		log.Error(session.UserMessage(err), zap.Error(err))
	}
	return err
}

func runJoin(ctx context.Context, cfg *Config, code string, log *zap.Logger) error {
	net, err := transport.NewWebSocketNetwork(cfg.bot.broker, log.Named("transport"))
	if err != nil {
		return err
	}

	err = joinGame(ctx, net, cfg.bot, code, log)
	if err != nil {
		log.Error(session.UserMessage(err), zap.Error(err))
	}
	return err
}
