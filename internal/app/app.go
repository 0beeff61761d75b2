// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: выбирает хранилище, создаёт сервисы, HTTP API,
// бота и планировщик.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/bot"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/bot/filters"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/bot/middleware"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/config"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/db/postgres"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/db/sqlite"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/admin"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/perks"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/streak"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/voting"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/jobs"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/server"
)

// storage — хранилища выбранного драйвера.
type storage struct {
	ledger  economy.Store
	perks   perks.Store
	journal casino.Journal
	ping    func(ctx context.Context) error
	close   func()
}

// App содержит все компоненты приложения.
type App struct {
	cfg       *config.Config
	store     *storage
	Server    *server.Server
	Scheduler *jobs.Scheduler

	// nil, если бот выключен
	Bot    *bot.Bot
	BotAPI *telego.Bot

	limiters []*middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc := loadLocation(cfg.AppTimezone)

	// === 1. Хранилище ===
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, store: store}

	// === 2. Таблицы наград ===
	registry, err := rewards.LoadRegistry(cfg.RewardTablesPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 3. Сервисы ===
	ledger := economy.NewService(store.ledger)
	casinoService := casino.NewService(
		ledger,
		registry,
		rewards.NewSelector(nil),
		casino.Wheel{
			PointerOffset: cfg.WheelPointerOffset,
			MinRotations:  cfg.WheelMinRotations,
			MaxRotations:  cfg.WheelMaxRotations,
		},
		casino.GridRenderer{DiagonalShare: cfg.CasinoDiagonalShare},
		casino.PayoutCalculator{
			JackpotMultiplier:   cfg.CasinoJackpotMultiplier,
			DiagonalBonus:       cfg.CasinoDiagonalBonus,
			MaxPayoutMultiplier: cfg.CasinoMaxPayoutMultiplier,
		},
		casino.NewPerkModifier(store.perks, cfg.PerkProtectionKey, cfg.PerkPayoutBoosts),
		store.journal,
		casino.Options{MinBet: cfg.CasinoMinBet, MaxBet: cfg.CasinoMaxBet, Enabled: cfg.FeatureCasinoEnabled},
	)

	var (
		votingService *voting.Service
		streakService *streak.Service
	)
	if cfg.FeatureVotingEnabled {
		votingService = voting.NewService(ledger, cfg.VoteReward, cfg.VoteDailyLimit, loc)
	}
	if cfg.FeatureDailyEnabled {
		streakService = streak.NewService(ledger, loc)
	}
	if cfg.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH не задан — админ API отключено")
	}

	// === 4. HTTP API ===
	playLimiter := a.newLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	a.Server = server.New(cfg.HTTPAddr, server.Deps{
		Ledger:      ledger,
		Casino:      casinoService,
		Voting:      votingService,
		Streak:      streakService,
		Admin:       admin.NewService(ledger, store.perks),
		Auth:        admin.NewAuthenticator(cfg.AdminTokenHash),
		RateLimiter: playLimiter,
		Ping:        store.ping,
	})

	// === 5. Планировщик задач ===
	a.Scheduler, err = jobs.NewScheduler(ctx, casino.NewReconciler(ledger, store.journal), jobs.Options{
		ReconcileSchedule: cfg.ReconcileSchedule,
		AuditSchedule:     cfg.AuditSchedule,
		ReconcileBatch:    cfg.ReconcileBatch,
		Location:          loc,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 6. Telegram ===
	if cfg.FeatureBotEnabled {
		if err := a.initBot(ctx, ledger, casinoService, votingService, streakService, loc); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *App) initBot(
	ctx context.Context,
	ledger *economy.Service,
	casinoService *casino.Service,
	votingService *voting.Service,
	streakService *streak.Service,
	loc *time.Location,
) error {
	api, err := telego.NewBot(a.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	handlers := bot.Handlers{Economy: economy.NewHandler(ledger, api, loc)}
	if a.cfg.FeatureCasinoEnabled {
		handlers.Casino = casino.NewHandler(casinoService, api)
	}
	if votingService != nil {
		handlers.Voting = voting.NewHandler(votingService, api)
	}
	if streakService != nil {
		handlers.Streak = streak.NewHandler(streakService, api)
	}

	a.BotAPI = api
	a.Bot = bot.New(
		api,
		handlers,
		filters.NewChatFilter(a.cfg.BotAllowedChatIDs),
		a.newLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow),
		bot.Options{MaxInflight: a.cfg.BotMaxInflight},
	)
	return nil
}

// Run запускает HTTP, бота и планировщик; возвращается после отмены ctx
// или при первой фатальной ошибке.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.Bot != nil {
		updates, err := a.BotAPI.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout: a.cfg.BotUpdateTimeoutSeconds,
		})
		if err != nil {
			return fmt.Errorf("ошибка запуска long polling: %w", err)
		}
		g.Go(func() error {
			a.Bot.Run(ctx, updates)
			return nil
		})
	}

	g.Go(func() error {
		return a.Server.Run(ctx)
	})

	a.Scheduler.Start()
	g.Go(func() error {
		<-ctx.Done()
		a.Scheduler.Stop()
		return nil
	})

	return g.Wait()
}

// Close освобождает ресурсы.
func (a *App) Close() {
	for _, l := range a.limiters {
		l.Close()
	}
	if a.store != nil && a.store.close != nil {
		a.store.close()
	}
}

func (a *App) newLimiter(limit int, window time.Duration) *middleware.RateLimiter {
	l := middleware.NewRateLimiter(limit, window)
	a.limiters = append(a.limiters, l)
	return l
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return postgresStorage(pool)

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqliteStorage(db), nil

	default:
		log.Warn("STORAGE_DRIVER=memory: данные пропадут при рестарте")
		return &storage{
			ledger:  economy.NewMemoryStore(),
			perks:   perks.NewMemoryStore(),
			journal: casino.NewMemoryJournal(),
			close:   func() {},
		}, nil
	}
}

func postgresStorage(pool *pgxpool.Pool) (*storage, error) {
	trManager, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания менеджера транзакций: %w", err)
	}
	return &storage{
		ledger:  economy.NewRepository(pool, trManager),
		perks:   perks.NewRepository(pool),
		journal: casino.NewRepository(pool),
		ping:    pool.Ping,
		close:   pool.Close,
	}, nil
}

func sqliteStorage(db *sql.DB) *storage {
	return &storage{
		ledger:  economy.NewSQLiteStore(db),
		perks:   perks.NewSQLiteStore(db),
		journal: casino.NewSQLiteJournal(db),
		ping:    db.PingContext,
		close: func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("Ошибка закрытия SQLite")
			}
		},
	}
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}
