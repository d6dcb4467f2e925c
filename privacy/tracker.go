package privacy

import (
	"github.com/tdewolff/jsprivacy/rewrite"
)

// Tracker records the template rewrites of a walk. Inside an unrewritten scope, such as the body
// of a TypeScript enum, nothing is recorded.
type Tracker struct {
	Rewrites []rewrite.Rewrite[Template]

	logger rewrite.Logger
	depth  int
}

// NewTracker returns a Tracker, the logger may be nil.
func NewTracker(logger rewrite.Logger) *Tracker {
	return &Tracker{
		logger: rewrite.OrDiscard(logger),
	}
}

// EnterUnrewritten suspends recording until the returned function is called.
func (t *Tracker) EnterUnrewritten() func() {
	t.depth++
	return t.exitUnrewritten
}

func (t *Tracker) exitUnrewritten() {
	if t.depth == 0 {
		t.logger.Printf("exit of unrewritten scope outside any unrewritten scope")
		return
	}
	t.depth--
}

// Replace records the replacement of span.
func (t *Tracker) Replace(template Template, span rewrite.Span) {
	if t.depth == 0 {
		t.Rewrites = append(t.Rewrites, rewrite.Replace(template, span))
	}
}
