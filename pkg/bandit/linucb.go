// Package bandit implements a disjoint LinUCB contextual bandit that picks a
// response strategy per turn, with durable per-arm state.
package bandit

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const DefaultAlpha = 0.5

var (
	ErrDimension    = errors.New("bandit: context vector dimension mismatch")
	ErrMalformed    = errors.New("bandit: non-finite context value")
	ErrUnknownArm   = errors.New("bandit: unknown arm")
	ErrCorruptState = errors.New("bandit: corrupt persisted state")
	ErrNotPD        = errors.New("bandit: design matrix is not positive definite")
)

// armState is immutable once published; readers use it without locks.
type armState struct {
	a     *mat.SymDense
	b     *mat.VecDense
	ainv  *mat.SymDense
	theta *mat.VecDense
}

func newArmState(a *mat.SymDense, b *mat.VecDense) (*armState, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, ErrNotPD
	}
	var ainv mat.SymDense
	if err := chol.InverseTo(&ainv); err != nil {
		return nil, fmt.Errorf("invert design matrix: %w", err)
	}
	var theta mat.VecDense
	if err := chol.SolveVecTo(&theta, b); err != nil {
		return nil, fmt.Errorf("solve theta: %w", err)
	}
	return &armState{a: a, b: b, ainv: &ainv, theta: &theta}, nil
}

func freshArmState(dim int) *armState {
	a := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		a.SetSym(i, i, 1)
	}
	st, _ := newArmState(a, mat.NewVecDense(dim, nil))
	return st
}

type arm struct {
	name       string
	mu         sync.Mutex
	state      atomic.Pointer[armState]
	selections atomic.Int64
}

type Option func(*Bandit)

func WithLogger(log *zap.Logger) Option {
	return func(b *Bandit) {
		if log != nil {
			b.log = log
		}
	}
}

// WithResetOnCorrupt quarantines an unreadable state file and starts fresh
// instead of failing Open.
func WithResetOnCorrupt(reset bool) Option {
	return func(b *Bandit) { b.resetOnCorrupt = reset }
}

// Bandit holds one ridge-regression model per action. Updates to an arm are
// serialized by that arm's mutex and persisted before the new state is
// published; Select reads published snapshots only.
type Bandit struct {
	alpha          float64
	dim            int
	arms           []*arm
	path           string
	persistMu      sync.Mutex
	resetOnCorrupt bool
	log            *zap.Logger
}

type Selection struct {
	Action string             `json:"action"`
	Index  int                `json:"action_idx"`
	Scores map[string]float64 `json:"ucb_scores"`
}

type Stats struct {
	Actions         []string `json:"actions"`
	TotalSelections []int64  `json:"total_selections"`
	Alpha           float64  `json:"alpha"`
	ContextDim      int      `json:"context_dim"`
}

// Open loads the bandit from path, or starts fresh when the file does not
// exist. An empty path keeps state in memory only.
func Open(path string, alpha float64, opts ...Option) (*Bandit, error) {
	b := &Bandit{
		alpha: alpha,
		dim:   ContextDim,
		path:  path,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Named("bandit")

	b.arms = make([]*arm, len(Actions))
	for i, name := range Actions {
		b.arms[i] = &arm{name: name}
		b.arms[i].state.Store(freshArmState(b.dim))
	}
	if path == "" {
		return b, nil
	}

	err := b.load()
	switch {
	case err == nil:
		b.log.Info("bandit weights loaded", zap.String("path", path))
	case errors.Is(err, os.ErrNotExist):
		b.log.Info("no bandit weights found, starting fresh", zap.String("path", path))
	case errors.Is(err, ErrCorruptState) && b.resetOnCorrupt:
		quarantined, qerr := quarantine(path)
		if qerr != nil {
			return nil, fmt.Errorf("quarantine bandit state: %w", qerr)
		}
		b.log.Warn("corrupt bandit weights quarantined, starting fresh",
			zap.String("path", path), zap.String("moved_to", quarantined), zap.Error(err))
		for _, a := range b.arms {
			a.state.Store(freshArmState(b.dim))
			a.selections.Store(0)
		}
	default:
		return nil, fmt.Errorf("load bandit state %s: %w", path, err)
	}
	return b, nil
}

func (b *Bandit) Alpha() float64 { return b.alpha }

func (b *Bandit) Dim() int { return b.dim }

// Index maps an action name to its arm index.
func (b *Bandit) Index(action string) (int, bool) {
	for i, a := range b.arms {
		if a.name == action {
			return i, true
		}
	}
	return 0, false
}

func (b *Bandit) checkContext(x []float64) error {
	if len(x) != b.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), b.dim)
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrMalformed
		}
	}
	return nil
}

// Select scores every arm with thetaᵀx + α·sqrt(xᵀA⁻¹x) and returns the
// highest. Ties go to the lowest index.
func (b *Bandit) Select(x []float64) (Selection, error) {
	if err := b.checkContext(x); err != nil {
		return Selection{}, err
	}
	xv := mat.NewVecDense(b.dim, append([]float64(nil), x...))

	scores := make(map[string]float64, len(b.arms))
	best, bestScore := 0, math.Inf(-1)
	for i, a := range b.arms {
		st := a.state.Load()
		mean := mat.Dot(st.theta, xv)
		width := math.Sqrt(math.Max(0, mat.Inner(xv, st.ainv, xv)))
		ucb := mean + b.alpha*width
		scores[a.name] = math.Round(ucb*10000) / 10000
		if ucb > bestScore {
			best, bestScore = i, ucb
		}
	}
	b.arms[best].selections.Add(1)
	return Selection{Action: b.arms[best].name, Index: best, Scores: scores}, nil
}

// Update applies A += xxᵀ, b += r·x to one arm and persists all arms before
// returning. On a persistence failure the in-memory state is unchanged.
func (b *Bandit) Update(armIdx int, x []float64, reward float64) error {
	if armIdx < 0 || armIdx >= len(b.arms) {
		return fmt.Errorf("%w: %d", ErrUnknownArm, armIdx)
	}
	if err := b.checkContext(x); err != nil {
		return err
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return fmt.Errorf("bandit: non-finite reward")
	}

	a := b.arms[armIdx]
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.state.Load()
	xv := mat.NewVecDense(b.dim, append([]float64(nil), x...))

	nextA := mat.NewSymDense(b.dim, nil)
	nextA.SymRankOne(cur.a, 1, xv)
	nextB := mat.NewVecDense(b.dim, nil)
	nextB.AddScaledVec(cur.b, reward, xv)

	next, err := newArmState(nextA, nextB)
	if err != nil {
		return fmt.Errorf("update arm %s: %w", a.name, err)
	}

	b.persistMu.Lock()
	defer b.persistMu.Unlock()
	if b.path != "" {
		if err := b.save(armIdx, next); err != nil {
			return fmt.Errorf("persist bandit state: %w", err)
		}
	}
	a.state.Store(next)

	b.log.Debug("arm updated",
		zap.String("action", a.name),
		zap.Float64("reward", reward),
		zap.Int64("selections", a.selections.Load()))
	return nil
}

func (b *Bandit) Stats() Stats {
	sel := make([]int64, len(b.arms))
	for i, a := range b.arms {
		sel[i] = a.selections.Load()
	}
	return Stats{
		Actions:         append([]string(nil), Actions...),
		TotalSelections: sel,
		Alpha:           b.alpha,
		ContextDim:      b.dim,
	}
}

// Design returns a copy of an arm's A matrix.
func (b *Bandit) Design(armIdx int) (*mat.SymDense, bool) {
	if armIdx < 0 || armIdx >= len(b.arms) {
		return nil, false
	}
	cp := mat.NewSymDense(b.dim, nil)
	cp.CopySym(b.arms[armIdx].state.Load().a)
	return cp, true
}

// Theta returns a copy of an arm's weight estimate A⁻¹b.
func (b *Bandit) Theta(armIdx int) ([]float64, bool) {
	if armIdx < 0 || armIdx >= len(b.arms) {
		return nil, false
	}
	st := b.arms[armIdx].state.Load()
	out := make([]float64, b.dim)
	for i := range out {
		out[i] = st.theta.AtVec(i)
	}
	return out, true
}
