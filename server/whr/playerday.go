package whr

import "math"

// gameTerm encodes one game's contribution to the Bayesian-Bradley-Terry
// likelihood as numerator/denominator coefficients in the player's own
// gamma: a win is ln(a*gamma) - ln(c*gamma + d), a loss ln(b) - ln(c*gamma + d).
type gameTerm struct {
	a, b, c, d float64
}

// PlayerDay is a player's latent rating on one day. R is the natural
// (log-gamma) rating, the variable the Newton solve mutates in place.
// Uncertainty stays -1 until the covariance pass fills it in.
type PlayerDay struct {
	Day         int
	R           float64
	IsFirstDay  bool
	Uncertainty float64

	player    *Player
	wonGames  []*Game
	lostGames []*Game

	// Lazy caches, cleared once per optimization round since opponents'
	// gammas may have moved.
	wonTerms  []gameTerm
	lostTerms []gameTerm
}

func newPlayerDay(p *Player, day int) *PlayerDay {
	return &PlayerDay{Day: day, player: p, Uncertainty: -1}
}

// Gamma is the multiplicative strength parameter exp(R).
func (d *PlayerDay) Gamma() float64 { return math.Exp(d.R) }

// SetGamma sets R from a gamma value.
func (d *PlayerDay) SetGamma(gamma float64) { d.R = math.Log(gamma) }

// Elo is the display-scale rating, a linear transform of R.
func (d *PlayerDay) Elo() float64 { return d.R * 400 / math.Ln10 }

// SetElo sets R from a display rating.
func (d *PlayerDay) SetElo(elo float64) { d.R = elo * math.Ln10 / 400 }

// ClearGameTermsCache drops the cached terms so the next read recomputes
// them against opponents' current gammas.
func (d *PlayerDay) ClearGameTermsCache() {
	d.wonTerms, d.lostTerms = nil, nil
}

// WonGameTerms returns the cached (a,b,c,d) terms for games won on this
// day. The first day carries an extra anchor win against a virtual gamma-1
// opponent so a cold-start rating stays pinned near zero Elo.
func (d *PlayerDay) WonGameTerms() ([]gameTerm, error) {
	if d.wonTerms == nil {
		terms := make([]gameTerm, 0, len(d.wonGames)+1)
		for _, g := range d.wonGames {
			og, err := g.OpponentsAdjustedGamma(d.player)
			if err != nil {
				return nil, err
			}
			terms = append(terms, gameTerm{1.0, 0.0, 1.0, og})
		}
		if d.IsFirstDay {
			terms = append(terms, gameTerm{1.0, 0.0, 1.0, 1.0})
		}
		d.wonTerms = terms
	}
	return d.wonTerms, nil
}

// LostGameTerms is the loss-side counterpart of WonGameTerms, including the
// symmetric first-day anchor loss.
func (d *PlayerDay) LostGameTerms() ([]gameTerm, error) {
	if d.lostTerms == nil {
		terms := make([]gameTerm, 0, len(d.lostGames)+1)
		for _, g := range d.lostGames {
			og, err := g.OpponentsAdjustedGamma(d.player)
			if err != nil {
				return nil, err
			}
			terms = append(terms, gameTerm{0.0, og, 1.0, og})
		}
		if d.IsFirstDay {
			terms = append(terms, gameTerm{0.0, 1.0, 1.0, 1.0})
		}
		d.lostTerms = terms
	}
	return d.lostTerms, nil
}

// LogLikelihood is this day's game-outcome log-likelihood at the current R.
func (d *PlayerDay) LogLikelihood() (float64, error) {
	won, err := d.WonGameTerms()
	if err != nil {
		return 0, err
	}
	lost, err := d.LostGameTerms()
	if err != nil {
		return 0, err
	}
	gamma := d.Gamma()
	tally := 0.0
	for _, t := range won {
		tally += math.Log(t.a * gamma)
		tally -= math.Log(t.c*gamma + t.d)
	}
	for _, t := range lost {
		tally += math.Log(t.b)
		tally -= math.Log(t.c*gamma + t.d)
	}
	return tally, nil
}

// LogLikelihoodDerivative is d/dr of LogLikelihood:
// (#won terms) - gamma * sum c/(c*gamma + d).
func (d *PlayerDay) LogLikelihoodDerivative() (float64, error) {
	won, err := d.WonGameTerms()
	if err != nil {
		return 0, err
	}
	lost, err := d.LostGameTerms()
	if err != nil {
		return 0, err
	}
	gamma := d.Gamma()
	tally := 0.0
	for _, t := range won {
		tally += t.c / (t.c*gamma + t.d)
	}
	for _, t := range lost {
		tally += t.c / (t.c*gamma + t.d)
	}
	return float64(len(won)) - gamma*tally, nil
}

// LogLikelihoodSecondDerivative is d2/dr2 of LogLikelihood:
// -gamma * sum c*d/(c*gamma + d)^2.
func (d *PlayerDay) LogLikelihoodSecondDerivative() (float64, error) {
	won, err := d.WonGameTerms()
	if err != nil {
		return 0, err
	}
	lost, err := d.LostGameTerms()
	if err != nil {
		return 0, err
	}
	gamma := d.Gamma()
	sum := 0.0
	for _, t := range won {
		sum += (t.c * t.d) / ((t.c*gamma + t.d) * (t.c*gamma + t.d))
	}
	for _, t := range lost {
		sum += (t.c * t.d) / ((t.c*gamma + t.d) * (t.c*gamma + t.d))
	}
	return -gamma * sum, nil
}

// AddGame classifies the game as won or lost for this player and appends it.
func (d *PlayerDay) AddGame(g *Game) {
	if (g.Winner == WinnerWhite && g.White == d.player) ||
		(g.Winner == WinnerBlack && g.Black == d.player) {
		d.wonGames = append(d.wonGames, g)
	} else {
		d.lostGames = append(d.lostGames, g)
	}
	d.ClearGameTermsCache()
}

// UpdateByOneDimNewton is the closed-form single-day Newton step, with the
// same stability bound as the multi-day solve.
func (d *PlayerDay) UpdateByOneDimNewton() error {
	dlogp, err := d.LogLikelihoodDerivative()
	if err != nil {
		return err
	}
	d2logp, err := d.LogLikelihoodSecondDerivative()
	if err != nil {
		return err
	}
	newR := d.R - dlogp/d2logp
	if math.Abs(newR*400/math.Ln10) > maxStableElo {
		return ErrUnstableRating
	}
	d.R = newR
	return nil
}
