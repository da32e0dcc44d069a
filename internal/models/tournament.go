package models

import (
	"fmt"
	"time"
)

// TeamColors — палитра цветов команд турнира.
var TeamColors = []string{
	"#ef4444", "#3b82f6", "#22c55e", "#f59e0b",
	"#8b5cf6", "#ec4899", "#06b6d4", "#84cc16",
	"#f97316", "#6366f1", "#14b8a6", "#a855f7",
	"#0ea5e9", "#eab308", "#10b981", "#f43f5e",
}

// TournamentTeam — команда турнира.
type TournamentTeam struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Color   string        `json:"color"`
	Players []UserSummary `json:"players"`
}

// Tournament — турнир, привязанный к плану один к одному.
type Tournament struct {
	ID             string           `json:"id"`
	PlanID         string           `json:"plan_id"`
	Sport          string           `json:"sport"`
	PlayersPerTeam int              `json:"players_per_team"`
	Teams          []TournamentTeam `json:"teams"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Clone возвращает глубокую копию турнира.
func (t Tournament) Clone() Tournament {
	c := t
	c.Teams = make([]TournamentTeam, len(t.Teams))
	for i, team := range t.Teams {
		team.Players = append([]UserSummary{}, team.Players...)
		c.Teams[i] = team
	}
	return c
}

// TeamName возвращает имя команды по умолчанию для указанного языка.
func TeamName(lang Language, n int) string {
	if lang == LanguageEN {
		return fmt.Sprintf("Team %d", n)
	}
	return fmt.Sprintf("Equipo %d", n)
}

// TeamColor возвращает цвет команды по её порядковому номеру (с нуля).
func TeamColor(i int) string {
	return TeamColors[i%len(TeamColors)]
}

// TournamentInput используется для создания турнира.
type TournamentInput struct {
	PlanID         string           `json:"plan_id" validate:"required"`
	Sport          string           `json:"sport" validate:"required"`
	PlayersPerTeam int              `json:"players_per_team" validate:"required,gte=1"`
	TeamCount      int              `json:"team_count" validate:"omitempty,gte=2,lte=64"`
	Teams          []TournamentTeam `json:"teams,omitempty"`
}
