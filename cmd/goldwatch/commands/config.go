package commands

import (
	"context"
	"errors"
	"os"

	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/configutil"
	"goldwatch/internal/components/telemetry"
	"goldwatch/internal/db"
	"goldwatch/internal/monitor"
	"goldwatch/internal/notifier/telegram"
	"goldwatch/internal/scrapers/logammulia"
)

type Config struct {
	// BaseUrl is the site root, e.g. "https://www.logammulia.com".
	BaseUrl string `json:"base_url"`
	// LocationFile is an optional saved copy of the location selector
	// document. When empty the branch directory is fetched from the live
	// purchase page at startup.
	LocationFile string `json:"location_file"`
	Database     string `json:"database"`
	MaxAttempts  int    `json:"max_attempts"`
	// TargetWeights restricts extraction to these weights in grams. Empty
	// means all weights.
	TargetWeights []float64       `json:"target_weights"`
	Branches      []string        `json:"branches"`
	Telegram      telegram.Config `json:"telegram"`
}

const defaultBaseUrl = "https://www.logammulia.com"

func readConfig() Config {
	// a missing config file is fine, the defaults plus env vars are a
	// complete configuration
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal("failed to read config", err)
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultBaseUrl
	}
	if cfg.Database == "" {
		cfg.Database = "goldwatch.db"
	}
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Telegram.ChatId == "" {
		cfg.Telegram.ChatId = os.Getenv("TELEGRAM_CHAT_ID")
	}
	return cfg
}

// setup wires the client, directory, database and notifier from config.
type setup struct {
	config    Config
	directory *logammulia.Directory
	notifier  *telegram.Client
	monitor   monitor.Monitor
	close     func()
}

func newSetup(ctx context.Context) setup {
	cfg := readConfig()
	tel := telemetry.SlogAPI{}
	timeApi := chrono.StandardTime{}
	sleepApi := chrono.StandardSleep{}

	var directory *logammulia.Directory
	if cfg.LocationFile != "" {
		f, err := os.Open(cfg.LocationFile)
		if err != nil {
			fatal("failed to open location file", err)
		}
		directory, err = logammulia.ParseDirectory(f)
		f.Close()
		if err != nil {
			fatal("failed to parse location file", err)
		}
	}

	client, err := logammulia.NewClient(cfg.BaseUrl, directory, cfg.MaxAttempts, timeApi, sleepApi, tel)
	if err != nil {
		fatal("failed to initialize client", err)
	}
	if directory == nil {
		directory, err = client.LoadDirectory(ctx)
		if err != nil {
			fatal("failed to load branch directory", err)
		}
	}

	sqlite, err := db.OpenDB(db.Schema, cfg.Database)
	if err != nil {
		fatal("failed to open db", err)
	}

	var notifier monitor.Notifier
	var telegramClient *telegram.Client
	if !*noTelegram && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatId != "" {
		telegramClient = telegram.NewClient(cfg.Telegram, timeApi, tel)
		notifier = telegramClient
	}

	mon := monitor.NewMonitor(
		client,
		logammulia.NewExtractor(tel),
		directory,
		db.New(sqlite),
		db.NewMakeTx(sqlite),
		notifier,
		timeApi,
		sleepApi,
		tel,
	)

	return setup{
		config:    cfg,
		directory: directory,
		notifier:  telegramClient,
		monitor:   mon,
		close:     func() { sqlite.Close() },
	}
}
