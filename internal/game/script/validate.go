package script

import (
	"errors"
	"fmt"

	"github.com/kesa0v0/WeimarPort/internal/game/faction"
)

// Issue is one static problem found in a script.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) Error() string {
	return i.Path + ": " + i.Message
}

// Validator checks scripts before they are run. Extra predicate names
// (registered Lua predicates) are accepted as condition types.
type Validator struct {
	predicates map[string]bool
}

// NewValidator creates a validator accepting the built-in predicates and extra.
func NewValidator(extra ...string) *Validator {
	v := &Validator{predicates: map[string]bool{
		string(CondIsInGovernment):     true,
		string(CondHasThreatMarker):    true,
		string(CondHasPartyBase):       true,
		string(CondControlsMinorParty): true,
	}}
	for _, name := range extra {
		v.predicates[name] = true
	}
	return v
}

// Validate returns every issue found in s, joined, or nil.
func Validate(s Script, extraPredicates ...string) error {
	issues := NewValidator(extraPredicates...).Check(s)
	if len(issues) == 0 {
		return nil
	}
	errs := make([]error, len(issues))
	for i, issue := range issues {
		errs[i] = issue
	}
	return errors.Join(errs...)
}

// Check walks s and its sub-scripts.
func (v *Validator) Check(s Script) []Issue {
	var issues []Issue
	v.walk(s, "script", &issues)
	return issues
}

func (v *Validator) walk(nodes []Node, path string, issues *[]Issue) {
	for i, n := range nodes {
		p := fmt.Sprintf("%s[%d]", path, i)
		add := func(format string, args ...any) {
			*issues = append(*issues, Issue{Path: p, Message: fmt.Sprintf(format, args...)})
		}

		if !n.Command.Known() {
			add("unknown command %q", n.Command)
		}
		for _, id := range []string{n.Args.PartyID, n.Args.TargetPartyID} {
			if _, err := faction.ParseOptional(id); err != nil {
				add("%v", err)
			}
		}
		if n.Args.Location != nil {
			v.location(*n.Args.Location, add)
		}
		if n.Command == CmdConditional && !n.IsConditional() {
			add("conditional without condition")
		}
		if n.Command == CmdPlayerChoice && !n.IsChoice() {
			add("player choice without options")
		}

		if c := n.Args.Condition; c != nil {
			if !v.predicates[c.Type] {
				add("unknown condition type %q", c.Type)
			}
			if c.Location != nil {
				v.location(*c.Location, add)
			}
			v.walk(n.Args.OnSuccess, p+".onSuccess", issues)
			v.walk(n.Args.OnFailure, p+".onFailure", issues)
		}
		for j, opt := range n.Args.Options {
			if opt.Label == "" {
				add("option %d has no label", j)
			}
			v.walk(opt.Effects, fmt.Sprintf("%s.options[%d]", p, j), issues)
		}
	}
}

func (v *Validator) location(l Location, add func(string, ...any)) {
	kind, ok := l.Kind()
	if !ok {
		add("unknown location type %q", l.Type)
		return
	}
	if kind == LocSpecific && l.Name == "" {
		add("specific location without name")
	}
	if kind == LocReserve && l.Name != "" {
		if _, err := faction.Parse(l.Name); err != nil {
			add("%v", err)
		}
	}
}
