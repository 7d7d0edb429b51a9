package consolidate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldName lower-cases a string and strips diacritics so "Gérard
// Dupont" and "gerard dupont" land on the same merge key.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// movementTypeVariants maps folded extraction output onto the
// canonical movement types. Providers and models emit a mix of
// English, French, and free-text variants.
var movementTypeVariants = map[string]string{
	"arrival":             MovementArrival,
	"arrivee":             MovementArrival,
	"joined":              MovementArrival,
	"hire":                MovementArrival,
	"new_hire":            MovementArrival,
	"departure":           MovementDeparture,
	"depart":              MovementDeparture,
	"left":                MovementDeparture,
	"exit":                MovementDeparture,
	"promotion":           MovementPromotion,
	"promoted":            MovementPromotion,
	"role_change":         MovementRoleChange,
	"role change":         MovementRoleChange,
	"job_change":          MovementRoleChange,
	"changement_poste":    MovementRoleChange,
	"changement poste":    MovementRoleChange,
	"changement de poste": MovementRoleChange,
}

// NormalizeMovementType folds case and diacritics and maps known
// variants onto the four canonical movement types. Unrecognized values
// pass through folded so dedup stays stable.
func NormalizeMovementType(v string) string {
	folded := FoldName(v)
	if canonical, ok := movementTypeVariants[folded]; ok {
		return canonical
	}
	return folded
}
