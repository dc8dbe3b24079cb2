// Package combat resolves a single directional encounter between two actors.
//
// The rule set is closed and keyed by the acting actor's kind:
//
//   - Bear ignores other bears; against anything else the bear kills when its
//     attack beats the other's defense, otherwise the other kills the bear
//     when its attack beats the bear's defense.
//   - Bittern never kills; it dies when the other's attack beats its defense.
//   - Desman kills a bear outright without rolling; against anything else it
//     can only die, when the other's attack beats its defense.
//
// A bittern is never credited with a kill, so counter-attacks by a bittern
// have no effect.
//
// Liveness is validated once per encounter by the caller. Both directions of
// an encounter are resolved as simultaneous strikes, so an actor killed by
// the first direction still strikes in the second; that is how mutual
// destruction happens. A victim that is already dead yields no outcome.
package combat

import (
	"fmt"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/model"
)

// Rule names used in outcomes and metrics labels.
const (
	RuleRoll    = "roll"
	RuleSpecial = "special"
)

// Outcome is the result of one Resolve call. Message is only set when
// Occurred is true.
type Outcome struct {
	Occurred bool
	Winner   *core.Actor
	Loser    *core.Actor
	Rule     string
	// Attack and Defense are the rolls that decided the kill; zero for the
	// special rule.
	Attack  int
	Defense int
	Message string
}

type rule func(r *Resolver, acting, other *core.Actor) Outcome

var defaultRules = map[model.Kind]rule{
	model.KindBear:    bearRule,
	model.KindBittern: bitternRule,
	model.KindDesman:  desmanRule,
}

// Resolver applies the rule table. A Resolver is owned by one goroutine
// because its dice are.
type Resolver struct {
	dice  core.Dice
	rules map[model.Kind]rule
}

// NewResolver returns a resolver rolling with dice. A nil dice selects
// core.NewRandDice().
func NewResolver(dice core.Dice) *Resolver {
	return newResolver(dice, defaultRules)
}

func newResolver(dice core.Dice, rules map[model.Kind]rule) *Resolver {
	if dice == nil {
		dice = core.NewRandDice()
	}
	return &Resolver{dice: dice, rules: rules}
}

// Resolve applies the acting actor's rule against other. Missing
// participants and unknown kinds produce no effect.
func (r *Resolver) Resolve(acting, other *core.Actor) Outcome {
	if acting == nil || other == nil || acting == other {
		return Outcome{}
	}
	fn, ok := r.rules[acting.Kind()]
	if !ok {
		return Outcome{}
	}
	return fn(r, acting, other)
}

func bearRule(r *Resolver, bear, other *core.Actor) Outcome {
	if other.Kind() == model.KindBear {
		return Outcome{}
	}
	att, def := bear.RollCombatDice(r.dice)
	otherAtt, otherDef := other.RollCombatDice(r.dice)

	if att > otherDef {
		return kill(bear, other, att, otherDef)
	}
	if otherAtt > def && canKill(other) {
		return kill(other, bear, otherAtt, def)
	}
	return Outcome{}
}

func bitternRule(r *Resolver, bittern, other *core.Actor) Outcome {
	_, def := bittern.RollCombatDice(r.dice)
	otherAtt, _ := other.RollCombatDice(r.dice)

	if otherAtt > def && canKill(other) {
		return kill(other, bittern, otherAtt, def)
	}
	return Outcome{}
}

func desmanRule(r *Resolver, desman, other *core.Actor) Outcome {
	if other.Kind() == model.KindBear {
		if !other.Kill() {
			return Outcome{}
		}
		return Outcome{
			Occurred: true,
			Winner:   desman,
			Loser:    other,
			Rule:     RuleSpecial,
			Message:  fmt.Sprintf("%s kills %s (special rule).", desman.Name(), other.Name()),
		}
	}

	_, def := desman.RollCombatDice(r.dice)
	otherAtt, _ := other.RollCombatDice(r.dice)

	if otherAtt > def && canKill(other) {
		return kill(other, desman, otherAtt, def)
	}
	return Outcome{}
}

// canKill reports whether k may ever be credited with a kill.
func canKill(k *core.Actor) bool {
	return k.Kind() != model.KindBittern
}

// kill applies the death and builds the outcome. A victim that was already
// dead yields no outcome, so each death is reported once.
func kill(killer, victim *core.Actor, attack, defense int) Outcome {
	if !victim.Kill() {
		return Outcome{}
	}
	return Outcome{
		Occurred: true,
		Winner:   killer,
		Loser:    victim,
		Rule:     RuleRoll,
		Attack:   attack,
		Defense:  defense,
		Message:  fmt.Sprintf("%s kills %s (rolled %d vs %d).", killer.Name(), victim.Name(), attack, defense),
	}
}
