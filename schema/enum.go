package schema

import (
	"fmt"
	"strings"
)

// ZeroPolicy decides how an enum without a zero entry is rendered.
type ZeroPolicy string

const (
	// ZeroNone leaves enums untouched.
	ZeroNone ZeroPolicy = "none"

	// ZeroRemap renames the entry valued -1 to 0, the upstream convention
	// for "unknown".
	ZeroRemap ZeroPolicy = "remap"

	// ZeroRemapOrSynthesize behaves like ZeroRemap and otherwise prepends a
	// synthetic <NAME>_UNKNOWN = 0 entry.
	ZeroRemapOrSynthesize ZeroPolicy = "remap-or-synthesize"
)

// ParseZeroPolicy validates a policy name. The empty string means ZeroRemap.
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch ZeroPolicy(s) {
	case "":
		return ZeroRemap, nil
	case ZeroNone, ZeroRemap, ZeroRemapOrSynthesize:
		return ZeroPolicy(s), nil
	}
	return "", fmt.Errorf("unknown enum zero policy %q", s)
}

// EffectiveValues returns the enum entries as they should be rendered under
// policy. The node itself is not modified.
func (n *Node) EffectiveValues(policy ZeroPolicy) []EnumValue {
	out := make([]EnumValue, len(n.Values))
	copy(out, n.Values)
	if policy == ZeroNone || policy == "" {
		return out
	}

	// Later entries win on duplicate numbers, like a number-to-name lookup
	// built by iterating in order.
	byNumber := make(map[int]int, len(out))
	for i, v := range out {
		byNumber[v.Number] = i
	}
	if _, ok := byNumber[0]; ok {
		return out
	}
	if i, ok := byNumber[-1]; ok {
		out[i].Number = 0
		return out
	}
	if policy == ZeroRemapOrSynthesize {
		synthetic := EnumValue{Name: strings.ToUpper(n.Name) + "_UNKNOWN", Number: 0}
		return append([]EnumValue{synthetic}, out...)
	}
	return out
}

// Proto3Values returns EffectiveValues(policy) with a zero entry first, as
// proto3 requires. An existing zero entry is moved to the front; otherwise a
// synthetic <NAME>_UNKNOWN = 0 entry is prepended whatever the policy.
func (n *Node) Proto3Values(policy ZeroPolicy) []EnumValue {
	out := n.EffectiveValues(policy)
	for i, v := range out {
		if v.Number != 0 {
			continue
		}
		if i == 0 {
			return out
		}
		reordered := make([]EnumValue, 0, len(out))
		reordered = append(reordered, v)
		reordered = append(reordered, out[:i]...)
		return append(reordered, out[i+1:]...)
	}
	synthetic := EnumValue{Name: strings.ToUpper(n.Name) + "_UNKNOWN", Number: 0}
	return append([]EnumValue{synthetic}, out...)
}
