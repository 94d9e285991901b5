package fixtures

import (
	"math/rand"
	"time"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/internal/engine"
)

// maxRandomTeams caps the team count of generated matches when the activity
// leaves it unbounded.
const maxRandomTeams = 4

// Random returns n submissions for act drawn from players, one minute apart
// starting at start. The same seed always yields the same history. Team
// counts and sizes respect the activity limits as far as len(players) allows;
// each session has one to three matches and ties are allowed.
func Random(seed int64, act model.Activity, players []model.PlayerID, n int, start time.Time) []engine.Submission {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible test data

	minTeams := max(2, act.MinTeamsPerMatch)
	maxTeams := act.MaxTeamsPerMatch
	if maxTeams == 0 {
		maxTeams = max(minTeams, maxRandomTeams)
	}
	minSize := max(1, act.MinPlayersPerTeam)
	maxSize := act.MaxPlayersPerTeam
	if maxSize == 0 {
		maxSize = minSize + 1
	}

	out := make([]engine.Submission, 0, n)
	for i := 0; i < n; i++ {
		teams := minTeams + rng.Intn(maxTeams-minTeams+1)
		size := minSize + rng.Intn(maxSize-minSize+1)
		for teams*size > len(players) && size > minSize {
			size--
		}
		for teams*size > len(players) && teams > minTeams {
			teams--
		}
		if teams*size > len(players) {
			break
		}

		perm := rng.Perm(len(players))
		sub := engine.Submission{
			Activity:    act.ID,
			SubmittedAt: start.Add(time.Duration(i) * time.Minute),
			Submitter:   "random",
			Teams:       make([][]model.PlayerID, teams),
		}
		for t := range sub.Teams {
			sub.Teams[t] = make([]model.PlayerID, size)
			for m := range sub.Teams[t] {
				sub.Teams[t][m] = players[perm[t*size+m]]
			}
		}

		matches := 1 + rng.Intn(3)
		for m := 0; m < matches; m++ {
			ranks := make([]int, teams)
			for t := range ranks {
				ranks[t] = 1 + rng.Intn(teams)
			}
			sub.Matches = append(sub.Matches, engine.MatchOutcome{Ranks: ranks})
		}
		out = append(out, sub)
	}
	return out
}
