// Package resolver decides what happens when senses collide during a merge.
// Everything here is a pure function of its inputs.
package resolver

import (
	"fmt"

	"github.com/kilupskalvis/lexmerge/internal/models"
)

// CollisionType identifies why an incoming sense collides with a target sense
type CollisionType string

const (
	CollisionID        CollisionType = "id"        // Same sense ID already in target
	CollisionSignature CollisionType = "signature" // Same normalized gloss+definition
)

// Collision describes an incoming sense clashing with an existing one
type Collision struct {
	Type          CollisionType
	ExistingIndex int // position of the colliding sense in the target
	ExistingID    string
}

// Action is the resolver's decision for one incoming sense
type Action string

const (
	ActionInsert    Action = "insert"    // No collision; append as-is
	ActionRename    Action = "rename"    // Append under NewID
	ActionSkip      Action = "skip"      // Leave on the source
	ActionOverwrite Action = "overwrite" // Replace content of the target sense at ReplaceIndex
)

// Decision is final for its sense within one operation
type Decision struct {
	Action       Action
	Collision    *Collision
	NewID        string // ID the sense carries on the target; set for ActionRename and ActionOverwrite
	ReplaceIndex int    // set for ActionOverwrite
	// Fallback is set when an overwrite was turned into a rename because the
	// colliding sense was placed earlier by the same Placer.
	Fallback bool
}

// Conflicted reports whether the decision resolved a collision.
func (d Decision) Conflicted() bool {
	return d.Collision != nil
}

// Detect finds the first collision between incoming and the target's senses.
// An ID collision takes precedence over a signature collision.
func Detect(target *models.Entry, incoming *models.Sense) *Collision {
	if i := target.SenseIndex(incoming.ID); i >= 0 {
		return &Collision{Type: CollisionID, ExistingIndex: i, ExistingID: incoming.ID}
	}
	sig := Signature(incoming)
	if sig == "" {
		return nil
	}
	for i, s := range target.Senses {
		if Signature(s) == sig {
			return &Collision{Type: CollisionSignature, ExistingIndex: i, ExistingID: s.ID}
		}
	}
	return nil
}

// Resolve decides how incoming is inserted into target under strategy.
// Unknown strategies yield a ConflictError.
func Resolve(target *models.Entry, incoming *models.Sense, strategy models.ConflictStrategy) (Decision, error) {
	collision := Detect(target, incoming)
	if collision == nil {
		return Decision{Action: ActionInsert}, nil
	}

	switch strategy {
	case models.ConflictRename:
		return renameDecision(target, incoming, collision), nil
	case models.ConflictSkip:
		return Decision{Action: ActionSkip, Collision: collision}, nil
	case models.ConflictOverwrite:
		// The existing sense keeps its ID; only its content is replaced.
		return Decision{
			Action:       ActionOverwrite,
			Collision:    collision,
			NewID:        collision.ExistingID,
			ReplaceIndex: collision.ExistingIndex,
		}, nil
	default:
		return Decision{}, models.Errorf(models.KindConflict, "resolve",
			"cannot resolve collision of sense %q with %q: unknown strategy %q", incoming.ID, collision.ExistingID, strategy)
	}
}

func renameDecision(target *models.Entry, incoming *models.Sense, collision *Collision) Decision {
	newID := incoming.ID
	if collision.Type == CollisionID {
		newID = ReissueIn(target, incoming.ID)
	}
	return Decision{Action: ActionRename, Collision: collision, NewID: newID}
}

// Placer settles a sequence of incoming senses against one target entry
// and applies each decision to the target. A sense placed by the Placer is
// never overwritten by a later one: such a collision is renamed instead,
// so every placed sense survives on the target.
type Placer struct {
	target   *models.Entry
	strategy models.ConflictStrategy
	placed   map[int]bool // target positions holding senses placed here
}

// NewPlacer returns a Placer that modifies target in place.
func NewPlacer(target *models.Entry, strategy models.ConflictStrategy) *Placer {
	return &Placer{target: target, strategy: strategy, placed: map[int]bool{}}
}

// Place decides how incoming enters the target and applies the decision.
// incoming.ID is updated to the ID it carries on the target. Skipped senses
// leave the target untouched.
func (p *Placer) Place(incoming *models.Sense) (Decision, error) {
	d, err := Resolve(p.target, incoming, p.strategy)
	if err != nil {
		return d, err
	}
	if d.Action == ActionOverwrite && p.placed[d.ReplaceIndex] {
		d = renameDecision(p.target, incoming, d.Collision)
		d.Fallback = true
	}

	switch d.Action {
	case ActionSkip:
		return d, nil
	case ActionOverwrite:
		incoming.ID = d.NewID
		p.target.Senses[d.ReplaceIndex] = incoming
		p.placed[d.ReplaceIndex] = true
		return d, nil
	case ActionRename:
		incoming.ID = d.NewID
	default:
		d.NewID = incoming.ID
	}
	p.target.Senses = append(p.target.Senses, incoming)
	p.placed[len(p.target.Senses)-1] = true
	return d, nil
}

// ReissueID returns base-n for the smallest n >= 1 not in taken. The search
// is unbounded, so the result is always unique and deterministic for a
// given taken set.
func ReissueID(base string, taken map[string]bool) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// ReissueIn returns a fresh ID for base that is unused in target.
func ReissueIn(target *models.Entry, base string) string {
	return ReissueID(base, takenIDs(target))
}

func takenIDs(e *models.Entry) map[string]bool {
	taken := make(map[string]bool, len(e.Senses))
	for _, s := range e.Senses {
		taken[s.ID] = true
	}
	return taken
}
