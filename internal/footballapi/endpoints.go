package footballapi

import (
	"context"
	"fmt"
	"net/url"
)

// ── football-data.org v4 endpoints ─────────────────────────

// Competitions lists competitions available on the given plan (e.g. TIER_ONE).
func (c *Client) Competitions(ctx context.Context, plan string) (map[string]any, error) {
	params := url.Values{}
	if plan != "" {
		params.Set("plan", plan)
	}
	return c.Get(ctx, "competitions", params)
}

func (c *Client) CompetitionTeams(ctx context.Context, competitionID int64) (map[string]any, error) {
	return c.Get(ctx, fmt.Sprintf("competitions/%d/teams", competitionID), nil)
}

func (c *Client) CompetitionStandings(ctx context.Context, competitionID int64) (map[string]any, error) {
	return c.Get(ctx, fmt.Sprintf("competitions/%d/standings", competitionID), nil)
}

func (c *Client) CompetitionScorers(ctx context.Context, competitionID int64) (map[string]any, error) {
	return c.Get(ctx, fmt.Sprintf("competitions/%d/scorers", competitionID), nil)
}

// CompetitionMatches collects every page of a competition's matches.
func (c *Client) CompetitionMatches(ctx context.Context, competitionID int64) ([]any, error) {
	return c.GetPages(ctx, fmt.Sprintf("competitions/%d/matches", competitionID), nil, "matches")
}

// MatchesToday lists today's matches across the subscribed competitions.
func (c *Client) MatchesToday(ctx context.Context) (map[string]any, error) {
	return c.Get(ctx, "matches", nil)
}

// TeamUpcomingMatches lists the next ten scheduled matches of a team.
func (c *Client) TeamUpcomingMatches(ctx context.Context, teamID int64) (map[string]any, error) {
	params := url.Values{}
	params.Set("status", "SCHEDULED")
	params.Set("limit", "10")
	return c.Get(ctx, fmt.Sprintf("teams/%d/matches", teamID), params)
}
