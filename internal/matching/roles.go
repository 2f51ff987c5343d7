package matching

// RandomSource decides the roles of two fully flexible users.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// Assignment is the outcome of role resolution for an ordered pair (a, b).
type Assignment uint8

const (
	// Incompatible means no assignment satisfies both users.
	Incompatible Assignment = iota
	// FirstInterviewee means a is interviewed by b.
	FirstInterviewee
	// SecondInterviewee means b is interviewed by a.
	SecondInterviewee
)

// ResolveRoles applies the role decision table to a pair of role sets.
// Fixed preferences win over flexible ones, and rnd is consulted only when
// both users accept either role.
func ResolveRoles(a, b Role, rnd RandomSource) Assignment {
	aee, aer := a.CanBeInterviewee(), a.CanInterview()
	bee, ber := b.CanBeInterviewee(), b.CanInterview()

	switch {
	case aee && !aer && ber:
		return FirstInterviewee
	case aer && !aee && bee:
		return SecondInterviewee
	case bee && !ber && aer:
		return SecondInterviewee
	case ber && !bee && aee:
		return FirstInterviewee
	case aee && aer && bee && ber:
		if rnd.IntN(2) == 0 {
			return FirstInterviewee
		}
		return SecondInterviewee
	case aer && bee && !ber:
		return SecondInterviewee
	case aee && ber && !bee:
		return FirstInterviewee
	}
	return Incompatible
}

// commonDifficulty picks one difficulty from a non-empty intersection,
// preferring medium, then easy, then hard.
func commonDifficulty(d Difficulty) Difficulty {
	for _, pick := range []Difficulty{DifficultyMedium, DifficultyEasy, DifficultyHard} {
		if d.Has(pick) {
			return pick
		}
	}
	return d
}
