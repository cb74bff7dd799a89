package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/adapters"
	"github.com/seatsniper/seatsniper/internal/alerts"
	"github.com/seatsniper/seatsniper/internal/config"
	"github.com/seatsniper/seatsniper/internal/monitor"
	"github.com/seatsniper/seatsniper/internal/notify"
	"github.com/seatsniper/seatsniper/internal/scoring"
	"github.com/seatsniper/seatsniper/internal/seatmaps"
	"github.com/seatsniper/seatsniper/internal/store"
	"github.com/seatsniper/seatsniper/internal/subscriptions"
)

// runtime bundles everything a command needs after boot.
type runtime struct {
	cfg        *config.Config
	adapters   []adapters.Adapter
	store      store.Store
	cache      *store.CooldownCache
	scheduler  *monitor.Scheduler
	registry   *subscriptions.Registry
	dispatcher *alerts.Dispatcher
}

func (r *runtime) close() {
	if r.cache != nil {
		r.cache.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing store failed")
		}
	}
}

// bootstrap loads config and wires the service. Adapters and notifiers
// missing credentials are skipped with a warning; zero surviving
// adapters is fatal.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyLogLevel(cfg.LogLevel)

	rt := &runtime{cfg: cfg}
	rt.store = openStore(ctx, cfg)

	cooldown := cfg.Monitor.AlertCooldown
	if cooldown <= 0 {
		cooldown = alerts.DefaultCooldown
	}
	if cfg.RedisURL != "" {
		cache, err := store.NewCooldownCache(ctx, cfg.RedisURL, cooldown)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cooldown runs without fast path")
		} else {
			rt.cache = cache
		}
	}

	rt.adapters, err = buildAdapters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifiers := buildNotifiers(cfg)

	engine, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		return nil, err
	}

	rt.registry = subscriptions.New(ctx, rt.store)

	var providers []adapters.SeatMapProvider
	for _, a := range rt.adapters {
		if p, ok := a.(adapters.SeatMapProvider); ok {
			providers = append(providers, p)
		}
	}

	opts := []alerts.Option{
		alerts.WithCooldown(cooldown),
		alerts.WithSeatMaps(seatmaps.NewResolver(providers)),
	}
	if rt.store != nil {
		opts = append(opts, alerts.WithStore(rt.store))
	}
	if rt.cache != nil {
		opts = append(opts, alerts.WithCooldownCache(rt.cache))
	}
	rt.dispatcher = alerts.New(rt.registry, notifiers, opts...)

	rt.scheduler = monitor.New(monitor.Config{
		Cities:            cfg.Cities,
		DiscoveryInterval: cfg.Monitor.DiscoveryInterval,
		HighInterval:      cfg.Monitor.HighInterval,
		MediumInterval:    cfg.Monitor.MediumInterval,
		LowInterval:       cfg.Monitor.LowInterval,
		MaxEventsPerCycle: cfg.Monitor.MaxEventsPerCycle,
		TopPicks:          cfg.Monitor.TopPicks,
		ScoreThreshold:    cfg.Monitor.ScoreThreshold,
	}, rt.adapters, rt.store, engine, rt.dispatcher, rt.registry)

	return rt, nil
}

// openStore prefers Postgres, falls back to memory-only degraded mode.
func openStore(ctx context.Context, cfg *config.Config) store.Store {
	if cfg.PostgresURL == "" {
		log.Warn().Msg("no postgres url configured, running memory-only")
		return store.NewMemory()
	}
	pg, err := store.NewPostgres(ctx, cfg.PostgresURL, 5*time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("postgres unavailable, running memory-only")
		return store.NewMemory()
	}
	return pg
}

// buildAdapters constructs and initializes every adapter with
// credentials. Bad credentials skip the adapter; zero adapters is fatal.
func buildAdapters(ctx context.Context, cfg *config.Config) ([]adapters.Adapter, error) {
	var candidates []adapters.Adapter

	if cfg.Adapters.Ticketmaster.APIKey != "" {
		tm, err := adapters.NewTicketmaster(adapters.TicketmasterConfig{
			APIKey:       cfg.Adapters.Ticketmaster.APIKey,
			DailyQuota:   cfg.Adapters.Ticketmaster.DailyQuota,
			CityStateMap: cfg.CityStateMap,
		})
		if err != nil {
			return nil, fmt.Errorf("ticketmaster: %w", err)
		}
		candidates = append(candidates, tm)
	}
	if cfg.Adapters.StubHub.ClientID != "" {
		sh, err := adapters.NewStubHub(adapters.StubHubConfig{
			ClientID:     cfg.Adapters.StubHub.ClientID,
			ClientSecret: cfg.Adapters.StubHub.ClientSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("stubhub: %w", err)
		}
		candidates = append(candidates, sh)
	}
	if cfg.Adapters.SeatGeek.ClientID != "" {
		sg, err := adapters.NewSeatGeek(adapters.SeatGeekConfig{
			ClientID:     cfg.Adapters.SeatGeek.ClientID,
			ClientSecret: cfg.Adapters.SeatGeek.ClientSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("seatgeek: %w", err)
		}
		candidates = append(candidates, sg)
	}
	if cfg.Adapters.GigFinder.APIToken != "" {
		gf, err := adapters.NewGigFinder(adapters.GigFinderConfig{
			APIToken: cfg.Adapters.GigFinder.APIToken,
			ActorID:  cfg.Adapters.GigFinder.ActorID,
		})
		if err != nil {
			return nil, fmt.Errorf("gigfinder: %w", err)
		}
		candidates = append(candidates, gf)
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var enabled []adapters.Adapter
	for _, a := range candidates {
		if err := a.Initialize(initCtx); err != nil {
			log.Warn().Err(err).Str("adapter", a.Name()).Msg("adapter initialization failed, skipping")
			continue
		}
		log.Info().Str("adapter", a.Name()).Msg("adapter ready")
		enabled = append(enabled, a)
	}
	if len(enabled) == 0 {
		return nil, errors.New("no adapters survived initialization")
	}
	return enabled, nil
}

// buildNotifiers constructs every transport with credentials.
func buildNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notifiers.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.Notifiers.TelegramBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifier skipped")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	tw := cfg.Notifiers.Twilio
	if tw.AccountSID != "" && tw.SMSFrom != "" {
		sms, err := notify.NewTwilioSMS(tw.AccountSID, tw.AuthToken, tw.SMSFrom)
		if err != nil {
			log.Warn().Err(err).Msg("twilio sms notifier skipped")
		} else {
			notifiers = append(notifiers, sms)
		}
	}
	if tw.AccountSID != "" && tw.WhatsAppFrom != "" {
		wa, err := notify.NewTwilioWhatsApp(tw.AccountSID, tw.AuthToken, tw.WhatsAppFrom)
		if err != nil {
			log.Warn().Err(err).Msg("twilio whatsapp notifier skipped")
		} else {
			notifiers = append(notifiers, wa)
		}
	}

	if len(notifiers) == 0 {
		log.Warn().Msg("no notifiers configured, alerts will not be delivered")
	}
	return notifiers
}
