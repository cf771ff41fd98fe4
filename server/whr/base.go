// Package whr implements whole-history rating: every player owns one
// latent rating per day they competed, tied together by a Wiener-process
// smoothness prior, and the engine maximizes the joint posterior with
// per-player tridiagonal Newton-Raphson steps. Past days keep getting
// revised as new games arrive.
//
// Ratings live on three scales: gamma (the Bradley-Terry strength
// multiplier), the natural rating r = ln(gamma) that the solver works on,
// and Elo = r * 400/ln(10) for display.
package whr

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
)

// Config tunes a rating base. The zero value is usable: W2 defaults to
// 300 Elo^2 of strength drift per day.
type Config struct {
	// W2 is the prior variance rate in Elo^2 per day.
	W2 float64
	// Uncased folds player names to lower case.
	Uncased bool
	// Debug prints per-day gradients during the solve.
	Debug bool
}

const defaultW2 = 300.0

// Base owns the player registry and game list for one rating universe.
// Multiple independent bases can coexist in a process. Not safe for
// concurrent use; callers serialize access.
type Base struct {
	cfg Config

	games   []*Game
	players map[string]*Player
	// Registration order, so iteration rounds are deterministic.
	order []*Player
}

// NewBase returns an empty rating base.
func NewBase(cfg Config) *Base {
	if cfg.W2 == 0 {
		cfg.W2 = defaultW2
	}
	return &Base{cfg: cfg, players: make(map[string]*Player)}
}

// Config returns the effective configuration.
func (b *Base) Config() Config { return b.cfg }

// Games returns all games in creation order.
func (b *Base) Games() []*Game { return b.games }

// Players returns every registered player in registration order, including
// players referenced only by queries and so without games.
func (b *Base) Players() []*Player { return b.order }

func (b *Base) key(name string) string {
	if b.cfg.Uncased {
		return strings.ToLower(name)
	}
	return name
}

// PlayerByName returns the named player, creating an empty timeline on
// first reference.
func (b *Base) PlayerByName(name string) *Player {
	name = b.key(name)
	p, ok := b.players[name]
	if !ok {
		p = newPlayer(name, b.cfg)
		b.players[name] = p
		b.order = append(b.order, p)
	}
	return p
}

// CreateGame registers a new game and attaches it to both players'
// timelines, creating per-day states as needed.
func (b *Base) CreateGame(black, white, winner string, day int, handicap float64, extras map[string]any) (*Game, error) {
	black, white = b.key(black), b.key(white)
	if black == white {
		return nil, fmt.Errorf("%w: %q", ErrSelfPlay, black)
	}
	winner = strings.ToUpper(winner)
	if winner != WinnerBlack && winner != WinnerWhite {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidWinner, winner)
	}
	whitePlayer := b.PlayerByName(white)
	blackPlayer := b.PlayerByName(black)
	g := newGame(blackPlayer, whitePlayer, winner, day, handicap, extras)
	whitePlayer.AddGame(g)
	blackPlayer.AddGame(g)
	b.games = append(b.games, g)
	return g, nil
}

// LogLikelihood is the joint log-likelihood of every timeline. It rises as
// iteration proceeds.
func (b *Base) LogLikelihood() (float64, error) {
	score := 0.0
	for _, p := range b.order {
		if len(p.days) == 0 {
			continue
		}
		ll, err := p.LogLikelihood()
		if err != nil {
			return 0, err
		}
		score += ll
	}
	return score, nil
}

func (b *Base) runOneIteration() error {
	for _, p := range b.order {
		if err := p.RunOneNewtonIteration(); err != nil {
			return err
		}
	}
	return nil
}

// Iterate runs count optimization rounds, then recomputes every player's
// uncertainty once at the end.
func (b *Base) Iterate(count int) error {
	for i := 0; i < count; i++ {
		if err := b.runOneIteration(); err != nil {
			return err
		}
	}
	for _, p := range b.order {
		if err := p.UpdateUncertainty(); err != nil {
			return err
		}
	}
	return nil
}

// AutoIterate runs batches of rounds until the Elo estimates stop moving by
// more than precision between batches, or the soft time limit elapses
// (checked between batches only). A zero timeLimit means no limit. Returns
// the number of rounds run and whether stability was reached; hitting the
// time limit is a normal non-converged return, not an error.
func (b *Base) AutoIterate(timeLimit time.Duration, precision float64, batchSize int) (int, bool, error) {
	if precision <= 0 {
		precision = 1e-3
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	start := time.Now()
	var prev [][]float64
	iterations := 0
	for {
		if err := b.Iterate(batchSize); err != nil {
			return iterations, false, err
		}
		iterations += batchSize
		cur := b.OrderedRatingsCompact(false)
		if prev != nil && stable(prev, cur, precision) {
			return iterations, true, nil
		}
		if timeLimit > 0 && time.Since(start) > timeLimit {
			return iterations, false, nil
		}
		prev = cur
	}
}

// stable reports whether every per-value Elo difference between two
// snapshots is within precision.
func stable(v1, v2 [][]float64, precision float64) bool {
	var f1, f2 []float64
	for _, row := range v1 {
		f1 = append(f1, row...)
	}
	for _, row := range v2 {
		f2 = append(f2, row...)
	}
	n := len(f1)
	if len(f2) < n {
		n = len(f2)
	}
	for i := 0; i < n; i++ {
		if math.Abs(f2[i]-f1[i]) > precision {
			return false
		}
	}
	return true
}

// ProbabilityFutureMatch estimates win probabilities for a hypothetical
// match from each player's latest rating (zero Elo for unknown players),
// with the handicap applied as an Elo shift. No game is persisted.
func (b *Base) ProbabilityFutureMatch(name1, name2 string, handicap float64) (p1, p2 float64, err error) {
	if b.key(name1) == b.key(name2) {
		return 0, 0, fmt.Errorf("%w: %q", ErrSelfPlay, b.key(name1))
	}
	player1 := b.PlayerByName(name1)
	player2 := b.PlayerByName(name2)
	gamma1, elo1 := 1.0, 0.0
	gamma2, elo2 := 1.0, 0.0
	if len(player1.days) > 0 {
		last := player1.days[len(player1.days)-1]
		gamma1, elo1 = last.Gamma(), last.Elo()
	}
	if len(player2.days) > 0 {
		last := player2.days[len(player2.days)-1]
		gamma2, elo2 = last.Gamma(), last.Elo()
	}
	p1 = gamma1 / (gamma1 + math.Pow(10, (elo2-handicap)/400.0))
	p2 = gamma2 / (gamma2 + math.Pow(10, (elo1+handicap)/400.0))
	return p1, p2, nil
}

// DayRating is one day of a player's history as reported to callers:
// rounded Elo and the posterior variance rounded to two decimals.
type DayRating struct {
	Day         int     `json:"day"`
	Elo         int     `json:"elo"`
	Uncertainty float64 `json:"uncertainty"`
}

// RatingsForPlayer projects a player's timeline into reporting form.
func (b *Base) RatingsForPlayer(name string) []DayRating {
	p := b.PlayerByName(name)
	out := make([]DayRating, 0, len(p.days))
	for _, d := range p.days {
		out = append(out, DayRating{
			Day:         d.Day,
			Elo:         int(math.Round(d.Elo())),
			Uncertainty: math.Round(d.Uncertainty*100) / 100,
		})
	}
	return out
}

// CurrentRating reports only the latest day, with ok=false for a player
// with no history.
func (b *Base) CurrentRating(name string) (DayRating, bool) {
	all := b.RatingsForPlayer(name)
	if len(all) == 0 {
		return DayRating{}, false
	}
	return all[len(all)-1], true
}

// PlayerRating is one player's full Elo history in leaderboard order.
type PlayerRating struct {
	Name string    `json:"name"`
	Elos []float64 `json:"elos"`
}

// rankedPlayers returns players with at least one day, ordered by their
// latest gamma ascending.
func (b *Base) rankedPlayers() []*Player {
	players := make([]*Player, 0, len(b.order))
	for _, p := range b.order {
		if len(p.days) > 0 {
			players = append(players, p)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].days[len(players[i].days)-1].Gamma() <
			players[j].days[len(players[j].days)-1].Gamma()
	})
	return players
}

// OrderedRatings lists every rated player's Elo history, weakest first.
// With current set, only the latest Elo per player is included.
func (b *Base) OrderedRatings(current bool) []PlayerRating {
	players := b.rankedPlayers()
	out := make([]PlayerRating, 0, len(players))
	for _, p := range players {
		pr := PlayerRating{Name: p.Name}
		if current {
			pr.Elos = []float64{p.days[len(p.days)-1].Elo()}
		} else {
			for _, d := range p.days {
				pr.Elos = append(pr.Elos, d.Elo())
			}
		}
		out = append(out, pr)
	}
	return out
}

// OrderedRatingsCompact is OrderedRatings without names, one row per
// player. This is the snapshot AutoIterate compares across batches.
func (b *Base) OrderedRatingsCompact(current bool) [][]float64 {
	ratings := b.OrderedRatings(current)
	out := make([][]float64, 0, len(ratings))
	for _, pr := range ratings {
		out = append(out, pr.Elos)
	}
	return out
}

// FormatOrderedRatings writes a plain-text leaderboard, weakest first.
func (b *Base) FormatOrderedRatings(w io.Writer, current bool) {
	for _, pr := range b.OrderedRatings(current) {
		if current {
			fmt.Fprintf(w, "%s => %v\n", pr.Name, pr.Elos[0])
		} else {
			fmt.Fprintf(w, "%s => %v\n", pr.Name, pr.Elos)
		}
	}
}
