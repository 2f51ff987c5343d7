package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRoles_DecisionTable(t *testing.T) {
	tests := []struct {
		name string
		a, b Role
		want Assignment
	}{
		{"interviewee meets interviewer", RoleInterviewee, RoleInterviewer, FirstInterviewee},
		{"interviewer meets interviewee", RoleInterviewer, RoleInterviewee, SecondInterviewee},
		{"two interviewees", RoleInterviewee, RoleInterviewee, Incompatible},
		{"two interviewers", RoleInterviewer, RoleInterviewer, Incompatible},
		{"interviewee meets flexible", RoleInterviewee, RoleBoth, FirstInterviewee},
		{"flexible meets interviewee", RoleBoth, RoleInterviewee, SecondInterviewee},
		{"interviewer meets flexible", RoleInterviewer, RoleBoth, SecondInterviewee},
		{"flexible meets interviewer", RoleBoth, RoleInterviewer, FirstInterviewee},
		{"empty role", 0, RoleBoth, Incompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd := &scriptedRand{}
			assert.Equal(t, tt.want, ResolveRoles(tt.a, tt.b, rnd))
			assert.Zero(t, rnd.calls, "random source must only decide between two flexible users")
		})
	}
}

func TestResolveRoles_FlexiblePairUsesRandomSource(t *testing.T) {
	first := &scriptedRand{values: []int{0}}
	assert.Equal(t, FirstInterviewee, ResolveRoles(RoleBoth, RoleBoth, first))
	assert.Equal(t, 1, first.calls)

	second := &scriptedRand{values: []int{1}}
	assert.Equal(t, SecondInterviewee, ResolveRoles(RoleBoth, RoleBoth, second))
	assert.Equal(t, 1, second.calls)
}

func TestCommonDifficulty_Priority(t *testing.T) {
	assert.Equal(t, DifficultyMedium, commonDifficulty(DifficultyBoth))
	assert.Equal(t, DifficultyMedium, commonDifficulty(DifficultyMedium|DifficultyHard))
	assert.Equal(t, DifficultyEasy, commonDifficulty(DifficultyEasy|DifficultyHard))
	assert.Equal(t, DifficultyHard, commonDifficulty(DifficultyHard))
}
