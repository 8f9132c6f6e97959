package schema

// ── football-data.org v4 contracts ─────────────────────────
// One schema per endpoint shape. Competitions appear with different field
// sets depending on the endpoint, so each variant gets its own schema.

// Schema names used by pipelines.
const (
	CompetitionsResponse = "competitions_response"
	TeamsResponse        = "teams_response"
	StandingsResponse    = "standings_response"
	TopScorersResponse   = "top_scorers_response"
	MatchesResponse      = "matches_response"
	Match                = "match"
)

var area = New("area",
	Req("id", KindInt),
	Req("name", KindString),
	Opt("code", KindString),
	Opt("flag", KindString),
)

var currentSeason = New("current_season",
	Req("id", KindInt),
	Req("start_date", KindDate).From("startDate"),
	Req("end_date", KindDate).From("endDate"),
	Opt("current_matchday", KindInt).From("currentMatchday"),
	Opt("winner", KindMap),
)

// competition as listed by /competitions.
var competition = New("competition",
	Req("id", KindInt),
	Req("name", KindString),
	Req("area", KindObject).Of(area),
	Opt("code", KindString),
	Opt("type", KindString),
	Opt("emblem", KindString),
	Opt("plan", KindString),
	Req("current_season", KindObject).From("currentSeason").Of(currentSeason),
	Req("number_of_available_seasons", KindInt).From("numberOfAvailableSeasons"),
	Req("last_updated", KindTimestamp).From("lastUpdated"),
)

// competitionRef is the short competition shape embedded in other resources.
var competitionRef = New("competition_ref",
	Req("id", KindInt),
	Req("name", KindString),
	Opt("code", KindString),
	Opt("type", KindString),
	Opt("emblem", KindString),
)

var contract = New("contract",
	Opt("start", KindString),
	Opt("until", KindString),
)

var coach = New("coach",
	Opt("id", KindInt),
	Opt("first_name", KindString).From("firstName"),
	Opt("last_name", KindString).From("lastName"),
	Opt("name", KindString),
	Opt("date_of_birth", KindDate).From("dateOfBirth"),
	Opt("nationality", KindString),
	Opt("contract", KindObject).Of(contract),
)

var squadMember = New("squad_member",
	Req("id", KindInt),
	Req("name", KindString),
	Opt("position", KindString),
	Opt("date_of_birth", KindDate).From("dateOfBirth"),
	Opt("nationality", KindString),
)

var team = New("team",
	Opt("area", KindObject).Of(area),
	Req("id", KindInt),
	Req("name", KindString),
	Req("short_name", KindString).From("shortName"),
	Req("tla", KindString),
	Req("crest", KindString),
	Opt("address", KindString),
	Opt("website", KindString),
	Opt("founded", KindInt),
	Opt("club_colors", KindString).From("clubColors"),
	Opt("venue", KindString),
	Opt("running_competitions", KindList).From("runningCompetitions").Of(competitionRef),
	Opt("coach", KindObject).Of(coach),
	Opt("squad", KindList).Of(squadMember),
	Opt("staff", KindList),
	Opt("last_updated", KindTimestamp).From("lastUpdated"),
)

// matchTeam is the short team shape used inside matches and scorers.
var matchTeam = New("match_team",
	Opt("id", KindInt),
	Opt("name", KindString),
	Opt("short_name", KindString).From("shortName"),
	Opt("tla", KindString),
	Opt("crest", KindString),
)

var season = New("season",
	Req("id", KindInt),
	Req("start_date", KindDate).From("startDate"),
	Req("end_date", KindDate).From("endDate"),
	Opt("current_matchday", KindInt).From("currentMatchday"),
	Opt("winner", KindObject).Of(matchTeam),
)

var teamStanding = New("team_standing",
	Req("id", KindInt),
	Req("name", KindString),
	Req("short_name", KindString).From("shortName"),
	Req("tla", KindString),
	Opt("crest", KindString),
)

var standingEntry = New("standing_entry",
	Req("position", KindInt),
	Req("team", KindObject).Of(teamStanding),
	Req("played_games", KindInt).From("playedGames"),
	Opt("form", KindString),
	Req("won", KindInt),
	Req("draw", KindInt),
	Req("lost", KindInt),
	Req("points", KindInt),
	Req("goals_for", KindInt).From("goalsFor"),
	Req("goals_against", KindInt).From("goalsAgainst"),
	Req("goal_difference", KindInt).From("goalDifference"),
)

var standing = New("standing",
	Req("stage", KindString),
	Req("type", KindString),
	Opt("group", KindString),
	Req("table", KindList).Of(standingEntry),
)

var player = New("player",
	Req("id", KindInt),
	Req("name", KindString),
	Opt("first_name", KindString).From("firstName"),
	Opt("last_name", KindString).From("lastName"),
	Opt("date_of_birth", KindDate).From("dateOfBirth"),
	Opt("nationality", KindString),
	Opt("section", KindString),
	Opt("position", KindString),
	Opt("shirt_number", KindInt).From("shirtNumber"),
	Opt("last_updated", KindTimestamp).From("lastUpdated"),
)

var scorer = New("scorer",
	Req("player", KindObject).Of(player),
	Opt("team", KindObject).Of(matchTeam),
	Req("played_matches", KindInt).From("playedMatches"),
	Req("goals", KindInt),
	Opt("assists", KindInt),
	Opt("penalties", KindInt),
)

var scoreDetails = New("score_details",
	Opt("home", KindInt),
	Opt("away", KindInt),
)

var score = New("score",
	Opt("winner", KindString),
	Req("duration", KindString),
	Req("full_time", KindObject).From("fullTime").Of(scoreDetails),
	Req("half_time", KindObject).From("halfTime").Of(scoreDetails),
)

var referee = New("referee",
	Req("id", KindInt),
	Req("name", KindString),
	Req("type", KindString),
	Opt("nationality", KindString),
)

var match = New(Match,
	Req("area", KindObject).Of(area),
	Req("competition", KindObject).Of(competitionRef),
	Req("season", KindObject).Of(season),
	Req("id", KindInt),
	Req("utc_date", KindTimestamp).From("utcDate"),
	Req("status", KindString),
	Opt("matchday", KindInt),
	Req("stage", KindString),
	Opt("which_group", KindString).From("group"),
	Req("last_updated", KindTimestamp).From("lastUpdated"),
	Req("home_team", KindObject).From("homeTeam").Of(matchTeam),
	Req("away_team", KindObject).From("awayTeam").Of(matchTeam),
	Req("score", KindObject).Of(score),
	Opt("odds", KindMap),
	Req("referees", KindList).Of(referee),
)

var matchFilters = New("match_filters",
	Opt("date_from", KindDate).From("dateFrom"),
	Opt("date_to", KindDate).From("dateTo"),
	Opt("permission", KindString),
	Opt("competitions", KindString),
	Opt("limit", KindInt),
)

var competitionsResponse = New(CompetitionsResponse,
	Req("count", KindInt),
	Req("filters", KindMap),
	Req("competitions", KindList).Of(competition),
)

var teamsResponse = New(TeamsResponse,
	Req("count", KindInt),
	Opt("filters", KindMap),
	Req("competition", KindObject).Of(competitionRef),
	Req("season", KindObject).Of(season),
	Req("teams", KindList).Of(team),
)

var standingsResponse = New(StandingsResponse,
	Opt("filters", KindMap),
	Opt("area", KindObject).Of(area),
	Req("competition", KindObject).Of(competitionRef),
	Req("season", KindObject).Of(season),
	Req("standings", KindList).Of(standing),
)

var topScorersResponse = New(TopScorersResponse,
	Req("count", KindInt),
	Opt("filters", KindMap),
	Req("competition", KindObject).Of(competitionRef),
	Req("season", KindObject).Of(season),
	Req("scorers", KindList).Of(scorer),
)

var matchesResponse = New(MatchesResponse,
	Opt("filters", KindObject).Of(matchFilters),
	Opt("result_set", KindMap).From("resultSet"),
	Req("matches", KindList).Of(match),
)

// NewFootballRegistry returns a registry with every football-data schema.
func NewFootballRegistry() *Registry {
	return NewRegistry().MustRegister(
		competitionsResponse,
		teamsResponse,
		standingsResponse,
		topScorersResponse,
		matchesResponse,
		match,
	)
}
