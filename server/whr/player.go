package whr

import (
	"fmt"
	"math"
	"sort"
)

const (
	// maxStableElo bounds candidate ratings after a Newton step; anything
	// past it means the model has diverged.
	maxStableElo = 650.0

	// hessianDamping keeps the Hessian strictly negative-definite even when
	// a day has degenerate data.
	hessianDamping = 0.001
)

// Player is one player's whole timeline: an ordered sequence of PlayerDays
// coupled by a Wiener-process smoothness prior. The prior variance between
// adjacent days is the day gap times w2.
type Player struct {
	Name string

	w2    float64
	debug bool
	days  []*PlayerDay
}

func newPlayer(name string, cfg Config) *Player {
	// cfg.W2 is in Elo^2 per day; the optimizer works on natural ratings.
	w2 := math.Sqrt(cfg.W2) * math.Ln10 / 400
	return &Player{Name: name, w2: w2 * w2, debug: cfg.Debug}
}

// Days exposes the timeline in day order. Callers must not reorder it.
func (p *Player) Days() []*PlayerDay { return p.days }

// Day returns the state for an exact day, or nil.
func (p *Player) Day(day int) *PlayerDay {
	i := sort.Search(len(p.days), func(i int) bool { return p.days[i].Day >= day })
	if i < len(p.days) && p.days[i].Day == day {
		return p.days[i]
	}
	return nil
}

// AddGame attaches a game to this player's timeline, creating the day state
// at its sorted position if needed. A new day inherits the gamma of the
// nearest earlier day, or 1.0 when no earlier day exists.
func (p *Player) AddGame(g *Game) {
	idx := sort.Search(len(p.days), func(i int) bool { return p.days[i].Day >= g.Day })
	if idx == len(p.days) || p.days[idx].Day != g.Day {
		pd := newPlayerDay(p, g.Day)
		switch {
		case len(p.days) == 0:
			pd.IsFirstDay = true
			pd.SetGamma(1)
		case idx == 0:
			pd.SetGamma(1)
		default:
			pd.SetGamma(p.days[idx-1].Gamma())
		}
		p.days = append(p.days, nil)
		copy(p.days[idx+1:], p.days[idx:])
		p.days[idx] = pd
	}
	if g.White == p {
		g.wpd = p.days[idx]
	} else {
		g.bpd = p.days[idx]
	}
	p.days[idx].AddGame(g)
}

// ComputeSigma2 returns the prior variance between each pair of adjacent
// days: |day gap| * w2.
func (p *Player) ComputeSigma2() []float64 {
	if len(p.days) < 2 {
		return nil
	}
	sigma2 := make([]float64, len(p.days)-1)
	for i := 0; i < len(p.days)-1; i++ {
		sigma2[i] = math.Abs(float64(p.days[i+1].Day-p.days[i].Day)) * p.w2
	}
	return sigma2
}

// LogLikelihood is the timeline's full posterior log-likelihood: each day's
// game terms plus the Gaussian density of the rating drift to each neighbor.
func (p *Player) LogLikelihood() (float64, error) {
	result := 0.0
	sigma2 := p.ComputeSigma2()
	n := len(p.days)
	for i := 0; i < n; i++ {
		prior := 0.0
		if i < n-1 {
			rd := p.days[i].R - p.days[i+1].R
			prior += 1 / math.Sqrt(2*math.Pi*sigma2[i]) * math.Exp(-rd*rd/(2*sigma2[i]))
		}
		if i > 0 {
			rd := p.days[i].R - p.days[i-1].R
			prior += 1 / math.Sqrt(2*math.Pi*sigma2[i-1]) * math.Exp(-rd*rd/(2*sigma2[i-1]))
		}
		ll, err := p.days[i].LogLikelihood()
		if err != nil {
			return 0, err
		}
		if prior == 0 {
			result += ll
		} else {
			result += ll + math.Log(prior)
		}
	}
	return result, nil
}

// hessian returns the diagonal and sub-diagonal of the (symmetric
// tridiagonal) Hessian of the timeline log-likelihood.
func (p *Player) hessian(sigma2 []float64) (diag, subDiag []float64, err error) {
	n := len(p.days)
	diag = make([]float64, n)
	subDiag = make([]float64, n-1)
	for row := 0; row < n; row++ {
		prior := 0.0
		if row < n-1 {
			prior += -1 / sigma2[row]
		}
		if row > 0 {
			prior += -1 / sigma2[row-1]
		}
		d2, err := p.days[row].LogLikelihoodSecondDerivative()
		if err != nil {
			return nil, nil, err
		}
		diag[row] = d2 + prior - hessianDamping
	}
	for i := 0; i < n-1; i++ {
		subDiag[i] = 1 / sigma2[i]
	}
	return diag, subDiag, nil
}

// gradient returns the gradient of the timeline log-likelihood at r.
func (p *Player) gradient(r []float64, sigma2 []float64) ([]float64, error) {
	n := len(p.days)
	g := make([]float64, n)
	for idx, day := range p.days {
		prior := 0.0
		if idx < n-1 {
			prior += -(r[idx] - r[idx+1]) / sigma2[idx]
		}
		if idx > 0 {
			prior += -(r[idx] - r[idx-1]) / sigma2[idx-1]
		}
		d1, err := day.LogLikelihoodDerivative()
		if err != nil {
			return nil, err
		}
		if p.debug {
			fmt.Printf("g[%d] = %v + %v\n", idx, d1, prior)
		}
		g[idx] = d1 + prior
	}
	return g, nil
}

// RunOneNewtonIteration performs one MAP-improving step for this player,
// holding all opponents' ratings fixed. Term caches are cleared first so the
// step sees opponents' current gammas.
func (p *Player) RunOneNewtonIteration() error {
	for _, d := range p.days {
		d.ClearGameTermsCache()
	}
	switch len(p.days) {
	case 0:
		return nil
	case 1:
		return p.days[0].UpdateByOneDimNewton()
	default:
		return p.updateByNDimNewton()
	}
}

// updateByNDimNewton solves H*x = g with the Thomas algorithm and applies
// r <- r - x. Candidate ratings are checked against the stability bound
// before any day is mutated, so a failed step leaves the timeline intact.
func (p *Player) updateByNDimNewton() error {
	n := len(p.days)
	r := make([]float64, n)
	for i, d := range p.days {
		r[i] = d.R
	}
	sigma2 := p.ComputeSigma2()
	diag, subDiag, err := p.hessian(sigma2)
	if err != nil {
		return err
	}
	g, err := p.gradient(r, sigma2)
	if err != nil {
		return err
	}

	// Forward elimination.
	a := make([]float64, n)
	d := make([]float64, n)
	b := make([]float64, n)
	d[0] = diag[0]
	b[0] = subDiag[0]
	for i := 1; i < n; i++ {
		a[i] = subDiag[i-1] / d[i-1]
		d[i] = diag[i] - a[i]*b[i-1]
		if i < n-1 {
			b[i] = subDiag[i]
		}
	}

	y := make([]float64, n)
	y[0] = g[0]
	for i := 1; i < n; i++ {
		y[i] = g[i] - a[i]*y[i-1]
	}

	// Back substitution.
	x := make([]float64, n)
	x[n-1] = y[n-1] / d[n-1]
	for i := n - 2; i >= 0; i-- {
		x[i] = (y[i] - b[i]*x[i+1]) / d[i]
	}

	for i := range r {
		if math.Abs((r[i]-x[i])*400/math.Ln10) > maxStableElo {
			return fmt.Errorf("%w: player %q", ErrUnstableRating, p.Name)
		}
	}
	for i, day := range p.days {
		day.R -= x[i]
	}
	return nil
}

// covarianceDiagonal computes the diagonal of the Hessian inverse (the
// per-day posterior variance) from the same forward sweep as the Newton
// solve plus a backward LU sweep.
func (p *Player) covarianceDiagonal() ([]float64, error) {
	n := len(p.days)
	sigma2 := p.ComputeSigma2()
	diag, subDiag, err := p.hessian(sigma2)
	if err != nil {
		return nil, err
	}

	a := make([]float64, n)
	d := make([]float64, n)
	b := make([]float64, n)
	d[0] = diag[0]
	if n > 1 {
		b[0] = subDiag[0]
	}
	for i := 1; i < n; i++ {
		a[i] = subDiag[i-1] / d[i-1]
		d[i] = diag[i] - a[i]*b[i-1]
		if i < n-1 {
			b[i] = subDiag[i]
		}
	}

	dp := make([]float64, n)
	bp := make([]float64, n)
	ap := make([]float64, n)
	dp[n-1] = diag[n-1]
	if n > 2 {
		bp[n-1] = subDiag[n-2]
	}
	for i := n - 2; i >= 0; i-- {
		ap[i] = subDiag[i] / dp[i+1]
		dp[i] = diag[i] - ap[i]*bp[i+1]
		if i > 0 {
			bp[i] = subDiag[i-1]
		}
	}

	v := make([]float64, n)
	for i := 0; i < n-1; i++ {
		v[i] = dp[i+1] / (b[i]*bp[i+1] - d[i]*dp[i+1])
	}
	v[n-1] = -1 / d[n-1]
	return v, nil
}

// UpdateUncertainty fills each day's Uncertainty with its posterior
// variance. Run once after iteration settles; it is not needed mid-round.
func (p *Player) UpdateUncertainty() error {
	if len(p.days) == 0 {
		return nil
	}
	v, err := p.covarianceDiagonal()
	if err != nil {
		return err
	}
	for i, d := range p.days {
		d.Uncertainty = v[i]
	}
	return nil
}
