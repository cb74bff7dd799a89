package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
)

// migrations run idempotently at startup. Additive columns use
// ADD COLUMN IF NOT EXISTS so older deployments upgrade in place.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		cities TEXT NOT NULL DEFAULT '',
		min_score INT NOT NULL DEFAULT 70,
		min_quantity INT NOT NULL DEFAULT 1,
		max_price_per_ticket DOUBLE PRECISION NOT NULL DEFAULT 0,
		keywords TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		paused BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, channel)
	)`,
	`ALTER TABLE subscriptions ADD COLUMN IF NOT EXISTS user_tier TEXT NOT NULL DEFAULT 'free'`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		event_id TEXT NOT NULL,
		section TEXT NOT NULL,
		average_price DOUBLE PRECISION NOT NULL,
		lowest_price DOUBLE PRECISION NOT NULL,
		highest_price DOUBLE PRECISION NOT NULL,
		listing_count INT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_lookup
		ON price_history (event_id, section, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alert_history (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		top_score INT NOT NULL,
		channel TEXT NOT NULL,
		success BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_history_pair
		ON alert_history (event_id, user_id, sent_at DESC)`,
	`CREATE TABLE IF NOT EXISTS event_groups (
		group_id TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		venue_name TEXT NOT NULL,
		event_date TIMESTAMPTZ NOT NULL,
		confidence INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS event_group_members (
		group_id TEXT NOT NULL REFERENCES event_groups(group_id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		platform_event_id TEXT NOT NULL,
		event_json JSONB NOT NULL,
		UNIQUE (group_id, platform),
		UNIQUE (platform, platform_event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		platform_event_id TEXT NOT NULL,
		event_name TEXT NOT NULL,
		event_date TIMESTAMPTZ NOT NULL,
		last_seen_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, platform, platform_event_id)
	)`,
}

// Postgres implements Store on sqlx + lib/pq.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres connects, pings, and runs migrations.
func NewPostgres(ctx context.Context, url string, timeout time.Duration) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Postgres{db: db, timeout: timeout}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Debug().Int("statements", len(migrations)).Msg("store migrations applied")
	return nil
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

type subscriptionRow struct {
	UserID            string    `db:"user_id"`
	Channel           string    `db:"channel"`
	Cities            string    `db:"cities"`
	MinScore          int       `db:"min_score"`
	MinQuantity       int       `db:"min_quantity"`
	MaxPricePerTicket float64   `db:"max_price_per_ticket"`
	Keywords          string    `db:"keywords"`
	Categories        string    `db:"categories"`
	Active            bool      `db:"active"`
	Paused            bool      `db:"paused"`
	UserTier          string    `db:"user_tier"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r subscriptionRow) toModel() models.Subscription {
	sub := models.Subscription{
		UserID:            r.UserID,
		Channel:           models.Channel(r.Channel),
		MinScore:          r.MinScore,
		MinQuantity:       r.MinQuantity,
		MaxPricePerTicket: r.MaxPricePerTicket,
		Active:            r.Active,
		Paused:            r.Paused,
		UserTier:          models.UserTier(r.UserTier),
	}
	if r.Cities != "" {
		sub.Cities = strings.Split(r.Cities, ",")
	}
	if r.Keywords != "" {
		sub.Keywords = strings.Split(r.Keywords, ",")
	}
	if r.Categories != "" {
		for _, c := range strings.Split(r.Categories, ",") {
			sub.Categories = append(sub.Categories, models.Category(c))
		}
	}
	return sub
}

func (p *Postgres) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	cats := make([]string, 0, len(sub.Categories))
	for _, c := range sub.Categories {
		cats = append(cats, string(c))
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions
			(user_id, channel, cities, min_score, min_quantity, max_price_per_ticket,
			 keywords, categories, active, paused, user_tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (user_id, channel) DO UPDATE SET
			cities = EXCLUDED.cities,
			min_score = EXCLUDED.min_score,
			min_quantity = EXCLUDED.min_quantity,
			max_price_per_ticket = EXCLUDED.max_price_per_ticket,
			keywords = EXCLUDED.keywords,
			categories = EXCLUDED.categories,
			active = EXCLUDED.active,
			paused = EXCLUDED.paused,
			user_tier = EXCLUDED.user_tier,
			updated_at = NOW()`,
		sub.UserID, string(sub.Channel), strings.Join(sub.Cities, ","),
		sub.MinScore, sub.MinQuantity, sub.MaxPricePerTicket,
		strings.Join(sub.Keywords, ","), strings.Join(cats, ","),
		sub.Active, sub.Paused, string(sub.UserTier))
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.UserID, err)
	}
	return nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var rows []subscriptionRow
	if err := p.db.SelectContext(ctx, &rows, `
		SELECT user_id, channel, cities, min_score, min_quantity, max_price_per_ticket,
		       keywords, categories, active, paused, user_tier, updated_at
		FROM subscriptions`); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	subs := make([]models.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toModel())
	}
	return subs, nil
}

func (p *Postgres) DeactivateSubscription(ctx context.Context, userID string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = FALSE, updated_at = NOW() WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deactivate subscription %s: %w", userID, err)
	}
	return nil
}

func (p *Postgres) AppendPriceHistory(ctx context.Context, points []models.HistoricalPrice) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price history tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history (event_id, section, average_price, lowest_price, highest_price, listing_count, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare price history insert: %w", err)
	}
	defer stmt.Close()

	for _, pt := range points {
		if _, err := stmt.ExecContext(ctx, pt.EventID, pt.Section,
			pt.AveragePrice, pt.LowestPrice, pt.HighestPrice, pt.ListingCount, pt.RecordedAt); err != nil {
			return fmt.Errorf("insert price point %s/%s: %w", pt.EventID, pt.Section, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) PriceHistory(ctx context.Context, eventID string, limit int) (map[string][]models.HistoricalPrice, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	var rows []models.HistoricalPrice
	if err := p.db.SelectContext(ctx, &rows, `
		SELECT event_id, section, average_price, lowest_price, highest_price, listing_count, recorded_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY section ORDER BY recorded_at DESC) AS rn
			FROM price_history WHERE event_id = $1
		) ranked
		WHERE rn <= $2
		ORDER BY section, recorded_at DESC`, eventID, limit); err != nil {
		return nil, fmt.Errorf("query price history %s: %w", eventID, err)
	}

	bySection := make(map[string][]models.HistoricalPrice)
	for _, r := range rows {
		bySection[r.Section] = append(bySection[r.Section], r)
	}
	return bySection, nil
}

func (p *Postgres) AppendAlert(ctx context.Context, rec models.AlertRecord) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO alert_history (id, event_id, user_id, sent_at, top_score, channel, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.EventID, rec.UserID, rec.SentAt, rec.TopScore, string(rec.Channel), rec.Success)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil // duplicate ledger entry, already recorded
		}
		return fmt.Errorf("append alert %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) LastSuccessfulAlert(ctx context.Context, eventID, userID string) (time.Time, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var sentAt time.Time
	err := p.db.QueryRowxContext(ctx, `
		SELECT sent_at FROM alert_history
		WHERE event_id = $1 AND user_id = $2 AND success
		ORDER BY sent_at DESC LIMIT 1`, eventID, userID).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last alert %s/%s: %w", eventID, userID, err)
	}
	return sentAt, nil
}

func (p *Postgres) UpsertEventGroup(ctx context.Context, group models.EventGroup) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO event_groups (group_id, canonical_name, venue_name, event_date, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (group_id) DO UPDATE SET confidence = EXCLUDED.confidence, updated_at = NOW()`,
		group.GroupID, group.CanonicalName, group.VenueName, group.EventDate, group.Confidence); err != nil {
		return fmt.Errorf("upsert group %s: %w", group.GroupID, err)
	}

	for platform, event := range group.Events {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal group member: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_group_members (group_id, platform, platform_event_id, event_json)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (platform, platform_event_id) DO UPDATE SET
				group_id = EXCLUDED.group_id,
				event_json = EXCLUDED.event_json`,
			group.GroupID, string(platform), event.PlatformID, eventJSON); err != nil {
			return fmt.Errorf("upsert group member %s/%s: %w", platform, event.PlatformID, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var entries []models.WatchlistEntry
	if err := p.db.SelectContext(ctx, &entries, `
		SELECT user_id, platform, platform_event_id, event_name, event_date, last_seen_price, added_at
		FROM watchlist WHERE user_id = $1 ORDER BY event_date`, userID); err != nil {
		return nil, fmt.Errorf("list watchlist %s: %w", userID, err)
	}
	return entries, nil
}

func (p *Postgres) AddWatch(ctx context.Context, entry models.WatchlistEntry) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, platform, platform_event_id, event_name, event_date, last_seen_price, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, platform, platform_event_id) DO NOTHING`,
		entry.UserID, string(entry.Platform), entry.PlatformEventID,
		entry.EventName, entry.EventDate, entry.LastSeenPrice, entry.AddedAt)
	if err != nil {
		return fmt.Errorf("add watch %s: %w", entry.PlatformEventID, err)
	}
	return nil
}

func (p *Postgres) RemoveWatch(ctx context.Context, userID string, platform models.Platform, platformEventID string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND platform = $2 AND platform_event_id = $3`,
		userID, string(platform), platformEventID); err != nil {
		return fmt.Errorf("remove watch %s: %w", platformEventID, err)
	}
	return nil
}

func (p *Postgres) UpdateWatchPrice(ctx context.Context, userID string, platform models.Platform, platformEventID string, price float64) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.db.ExecContext(ctx, `
		UPDATE watchlist SET last_seen_price = $4
		WHERE user_id = $1 AND platform = $2 AND platform_event_id = $3`,
		userID, string(platform), platformEventID, price); err != nil {
		return fmt.Errorf("update watch price %s: %w", platformEventID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
