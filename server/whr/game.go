package whr

import (
	"fmt"
	"math"
	"strings"
)

// Winner values accepted by CreateGame.
const (
	WinnerBlack = "B"
	WinnerWhite = "W"
)

// Opponent gammas beyond this are treated as overflow rather than clamped.
const maxGamma = float64(math.MaxInt64)

// Game is an immutable record of one pairwise outcome. The two day-state
// links are not owned by the game; they are set exactly once when the game
// is attached to each player's timeline.
type Game struct {
	Black    *Player
	White    *Player
	Winner   string
	Day      int
	Handicap float64
	Extras   map[string]any

	bpd *PlayerDay
	wpd *PlayerDay
}

func newGame(black, white *Player, winner string, day int, handicap float64, extras map[string]any) *Game {
	if extras == nil {
		extras = make(map[string]any)
	}
	if _, ok := extras["komi"]; !ok {
		extras["komi"] = 6.5
	}
	return &Game{
		Black:    black,
		White:    white,
		Winner:   strings.ToUpper(winner),
		Day:      day,
		Handicap: handicap,
		Extras:   extras,
	}
}

// Opponent returns the other side of the game.
func (g *Game) Opponent(p *Player) *Player {
	if p == g.White {
		return g.Black
	}
	return g.White
}

// OpponentsAdjustedGamma is the opponent's strength as seen by p: the
// opponent's Elo shifted by the handicap (up for white's view, down for
// black's), mapped through 10^(elo/400).
func (g *Game) OpponentsAdjustedGamma(p *Player) (float64, error) {
	if g.bpd == nil || g.wpd == nil {
		return 0, ErrDayStateUnset
	}
	var opponentElo float64
	switch p {
	case g.White:
		opponentElo = g.bpd.Elo() + g.Handicap
	case g.Black:
		opponentElo = g.wpd.Elo() - g.Handicap
	default:
		return 0, fmt.Errorf("whr: player %q is not part of game %s", p.Name, g)
	}
	gamma := math.Pow(10, opponentElo/400.0)
	if gamma == 0 || gamma > maxGamma {
		return 0, fmt.Errorf("%w: gamma %v for opponent of %q", ErrGammaOverflow, gamma, p.Name)
	}
	return gamma, nil
}

// WhiteWinProbability is white's Bradley-Terry win probability against
// black's handicap-adjusted gamma. The two colors' probabilities only sum
// to one at zero handicap, since the handicap shifts each side's view of
// the opponent rather than a shared odds ratio.
func (g *Game) WhiteWinProbability() (float64, error) {
	if g.wpd == nil {
		return 0, ErrDayStateUnset
	}
	og, err := g.OpponentsAdjustedGamma(g.White)
	if err != nil {
		return 0, err
	}
	gamma := g.wpd.Gamma()
	return gamma / (gamma + og), nil
}

// BlackWinProbability is the mirror of WhiteWinProbability.
func (g *Game) BlackWinProbability() (float64, error) {
	if g.bpd == nil {
		return 0, ErrDayStateUnset
	}
	og, err := g.OpponentsAdjustedGamma(g.Black)
	if err != nil {
		return 0, err
	}
	gamma := g.bpd.Gamma()
	return gamma / (gamma + og), nil
}

// PredictionScore grades the model's forecast of this game's outcome:
// 1 if the favored side won, 0 if it lost, 0.5 on a coin flip.
func (g *Game) PredictionScore() (float64, error) {
	p, err := g.WhiteWinProbability()
	if err != nil {
		return 0, err
	}
	switch {
	case p == 0.5:
		return 0.5, nil
	case g.Winner == WinnerWhite && p > 0.5:
		return 1.0, nil
	case g.Winner == WinnerBlack && p < 0.5:
		return 1.0, nil
	}
	return 0.0, nil
}

// String is the canonical inspection form, also used to verify that a
// persisted base reloads into an identical state.
func (g *Game) String() string {
	wr, br := "?", "?"
	if g.wpd != nil {
		wr = fmt.Sprintf("%v", g.wpd.R)
	}
	if g.bpd != nil {
		br = fmt.Sprintf("%v", g.bpd.R)
	}
	return fmt.Sprintf("W:%s(r=%s) B:%s(r=%s) winner = %s, komi = %v, handicap = %v",
		g.White.Name, wr, g.Black.Name, br, g.Winner, g.Extras["komi"], g.Handicap)
}
