package game

import (
	"image/color"
	"sort"

	"bombersplash/internal/tiled"
)

// TeamColors are the paint colours of the playable teams, keyed by the name
// of their start position on the map. Scores count pixels of exactly these
// colours.
var TeamColors = map[string]color.RGBA{
	"red":    {R: 0xff, A: 0xff},
	"green":  {G: 0xff, A: 0xff},
	"blue":   {B: 0xff, A: 0xff},
	"yellow": {R: 0xff, G: 0xff, A: 0xff},
}

// Team groups the players spawning at one start position
type Team struct {
	Name    string
	Start   tiled.Point
	Players map[string]*Player
	Bombs   map[string]*Bomb
	Score   int
}

// TeamInfo is the JSON view of a team
type TeamInfo struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	Players int    `json:"players"`
	Bombs   int    `json:"bombs"`
	Score   int    `json:"score"`
}

func newTeam(name string, start tiled.Point) *Team {
	return &Team{
		Name:    name,
		Start:   start,
		Players: make(map[string]*Player),
		Bombs:   make(map[string]*Bomb),
	}
}

// Size returns the number of players in the team
func (t *Team) Size() int {
	return len(t.Players)
}

// Color returns the team colour as a CSS hex string, or "" for unknown teams
func (t *Team) Color() string {
	c, ok := TeamColors[t.Name]
	if !ok {
		return ""
	}
	return hexColor(c)
}

func (t *Team) info() TeamInfo {
	return TeamInfo{
		Name:    t.Name,
		Color:   t.Color(),
		Players: len(t.Players),
		Bombs:   len(t.Bombs),
		Score:   t.Score,
	}
}

func hexColor(c color.RGBA) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}

// teamsFromStarts builds one team per start position, sorted by name
func teamsFromStarts(starts map[string]tiled.Point) []*Team {
	teams := make([]*Team, 0, len(starts))
	for name, pos := range starts {
		teams = append(teams, newTeam(name, pos))
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams
}

// smallestTeam returns the team with the fewest players. Ties go to the
// first team in name order.
func smallestTeam(teams []*Team) *Team {
	var best *Team
	for _, t := range teams {
		if best == nil || t.Size() < best.Size() {
			best = t
		}
	}
	return best
}
