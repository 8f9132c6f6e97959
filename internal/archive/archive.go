package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"football/internal/etl"
	"football/internal/logger"
)

// ── Raw payload archive ────────────────────────────────────
// Fetcher decorates an etl.Fetcher and stores every successful upstream
// response before handing it on. Archiving is best-effort: a failed write
// is logged and never fails the pipeline.

// Document is one archived response.
type Document struct {
	ID        string    `bson:"_id" json:"id"`
	Endpoint  string    `bson:"endpoint" json:"endpoint"`
	EntityID  int64     `bson:"entity_id,omitempty" json:"entityId,omitempty"`
	FetchedAt time.Time `bson:"fetched_at" json:"fetchedAt"`
	Payload   any       `bson:"payload" json:"payload"`
}

// Sink stores archived documents.
type Sink interface {
	Archive(ctx context.Context, doc Document) error
}

// Fetcher is an etl.Fetcher that archives every response it returns.
type Fetcher struct {
	next    etl.Fetcher
	sink    Sink
	log     zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

var _ etl.Fetcher = (*Fetcher)(nil)

// Wrap returns next unchanged when sink is nil.
func Wrap(next etl.Fetcher, sink Sink, log zerolog.Logger) etl.Fetcher {
	if sink == nil {
		return next
	}
	return &Fetcher{
		next:    next,
		sink:    sink,
		log:     logger.Component(log, "archive"),
		now:     time.Now,
		timeout: 5 * time.Second,
	}
}

func (f *Fetcher) record(ctx context.Context, endpoint string, id int64, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	doc := Document{
		ID:        uuid.New().String(),
		Endpoint:  endpoint,
		EntityID:  id,
		FetchedAt: f.now().UTC(),
		Payload:   payload,
	}
	if err := f.sink.Archive(ctx, doc); err != nil {
		f.log.Warn().Err(err).Str("endpoint", endpoint).Int64("entity_id", id).Msg("archive write failed")
	}
}

func (f *Fetcher) Competitions(ctx context.Context, plan string) (map[string]any, error) {
	raw, err := f.next.Competitions(ctx, plan)
	if err == nil {
		f.record(ctx, "competitions", 0, raw)
	}
	return raw, err
}

func (f *Fetcher) CompetitionTeams(ctx context.Context, competitionID int64) (map[string]any, error) {
	raw, err := f.next.CompetitionTeams(ctx, competitionID)
	if err == nil {
		f.record(ctx, "competitions/teams", competitionID, raw)
	}
	return raw, err
}

func (f *Fetcher) CompetitionStandings(ctx context.Context, competitionID int64) (map[string]any, error) {
	raw, err := f.next.CompetitionStandings(ctx, competitionID)
	if err == nil {
		f.record(ctx, "competitions/standings", competitionID, raw)
	}
	return raw, err
}

func (f *Fetcher) CompetitionScorers(ctx context.Context, competitionID int64) (map[string]any, error) {
	raw, err := f.next.CompetitionScorers(ctx, competitionID)
	if err == nil {
		f.record(ctx, "competitions/scorers", competitionID, raw)
	}
	return raw, err
}

func (f *Fetcher) CompetitionMatches(ctx context.Context, competitionID int64) ([]any, error) {
	items, err := f.next.CompetitionMatches(ctx, competitionID)
	if err == nil {
		f.record(ctx, "competitions/matches", competitionID, items)
	}
	return items, err
}

func (f *Fetcher) MatchesToday(ctx context.Context) (map[string]any, error) {
	raw, err := f.next.MatchesToday(ctx)
	if err == nil {
		f.record(ctx, "matches", 0, raw)
	}
	return raw, err
}

func (f *Fetcher) TeamUpcomingMatches(ctx context.Context, teamID int64) (map[string]any, error) {
	raw, err := f.next.TeamUpcomingMatches(ctx, teamID)
	if err == nil {
		f.record(ctx, "teams/matches", teamID, raw)
	}
	return raw, err
}
