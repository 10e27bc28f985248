package game

import "sort"

// Standing is a team's place on the leaderboard
type Standing struct {
	Rank  int    `json:"rank" msgpack:"rank"`
	Team  string `json:"team" msgpack:"team"`
	Score int    `json:"score" msgpack:"score"`
}

// Standings ranks teams by score, highest first. Equal scores share a rank
// and are listed by team name.
func Standings(scores map[string]int) []Standing {
	out := make([]Standing, 0, len(scores))
	for team, score := range scores {
		out = append(out, Standing{Team: team, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Team < out[j].Team
	})

	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

// Winners returns the teams sharing first place
func Winners(scores map[string]int) []string {
	var out []string
	for _, s := range Standings(scores) {
		if s.Rank != 1 {
			break
		}
		out = append(out, s.Team)
	}
	return out
}
