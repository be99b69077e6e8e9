package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/jamoran1356/promptmind/internal/ai"
	"github.com/jamoran1356/promptmind/internal/ai/anthropic"
	"github.com/jamoran1356/promptmind/internal/ai/openai"
	"github.com/jamoran1356/promptmind/internal/audit"
	"github.com/jamoran1356/promptmind/internal/chain/ethereum"
	"github.com/jamoran1356/promptmind/internal/configs"
	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/data/memory"
	"github.com/jamoran1356/promptmind/internal/data/storage"
	"github.com/jamoran1356/promptmind/internal/ratelimit"
	"github.com/jamoran1356/promptmind/internal/server"
	"github.com/jamoran1356/promptmind/internal/settlement"
)

var (
	flagconf string

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.json", "config path, eg: -conf config.json")
}

func main() {
	flag.Parse()

	// 加载配置
	config := &configs.Config{}
	configFile, err := os.ReadFile(flagconf)
	if err != nil {
		log.Error("Error reading config file", "err", err)
		return
	}

	if err := json.Unmarshal(configFile, config); err != nil {
		log.Error("Error parsing config file", "err", err)
		return
	}
	config.ApplyDefaults()

	log.Debug("Loaded config", "addr", config.Server.Addr, "driver", config.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	var store data.Store
	var pg *storage.PostgresStorage
	switch config.Database.Driver {
	case "memory":
		store = memory.NewMemoryStorage()
	default:
		pg, err = storage.NewPostgresStorage(config.Database.ConnStr)
		if err != nil {
			log.Error("Error creating storage", "err", err)
			return
		}
		defer pg.Close()
		store = pg
	}

	log.Debug("init store")

	// 限流计数器：redis 优先，其次数据库，最后内存
	var counters ratelimit.CounterStore
	switch {
	case config.Redis.Addr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		counters = ratelimit.NewRedisStore(rdb)
	case pg != nil:
		counters = pg
	default:
		counters = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(counters, config.RateLimits.Window(), config.RateLimits.Endpoints, log)

	log.Debug("init limiter")

	var evaluator ai.Evaluator
	switch config.AIConfig.Provider {
	case "openai":
		evaluator = openai.NewOpenAIEvaluator(config.AIConfig.APIKey, config.AIConfig.ModelType)
	default:
		evaluator = anthropic.NewEvaluator(config.AIConfig.APIKey, config.AIConfig.ModelType)
	}

	log.Debug("init evaluator", "provider", config.AIConfig.Provider)

	executor, err := ethereum.NewExecutor(ctx,
		config.ChainConfig.RPCURL,
		config.ChainConfig.PrivateKey,
		config.ChainConfig.MarketplaceAddress,
		config.ChainConfig.BreedingAddress,
	)
	if err != nil {
		log.Error("Error creating chain executor", "err", err)
		return
	}

	log.Debug("init executor")

	svc := settlement.NewService(store, evaluator, executor, audit.NewAuditor(store, log), log)

	srv := server.NewServer(config.Server.Addr, store, svc, limiter, config.Server.JWTSecret, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("Server error", "err", err)
	}
}
