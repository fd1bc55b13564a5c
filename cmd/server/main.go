package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hupe1980/cartpilot/api"
	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/config"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
	"github.com/hupe1980/cartpilot/model"
	"github.com/hupe1980/cartpilot/model/anthropic"
	"github.com/hupe1980/cartpilot/model/openai"
	"github.com/hupe1980/cartpilot/order"
	"github.com/hupe1980/cartpilot/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, parseLevel(cfg.LogLevel))

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	store, err := order.NewGormStore(db)
	if err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		sessions = session.NewRedisStore(rdb)
		logger.Info("server.sessions.redis", "addr", cfg.RedisAddr)
	}

	orders := order.NewService(store, func(o *order.ServiceOptions) {
		o.Logger = logger
	})

	auth := instamart.NewAuth(cfg.InstamartEndpoint, nil)

	newCartAPI := func(accessToken, addressID string) instamart.API {
		return instamart.NewClient(accessToken, addressID, func(o *instamart.Options) {
			if cfg.InstamartEndpoint != "" {
				o.Endpoint = cfg.InstamartEndpoint
			}
		})
	}

	newBuilder := makeBuilderFactory(cfg, logger)

	server := api.NewServer(orders, sessions, auth, newBuilder, newCartAPI, func(o *api.Options) {
		o.Logger = logger
	})

	r := gin.Default()
	server.Routes(r)

	logger.Info("server.listen", "addr", cfg.HTTPAddr, "builder", cfg.CartBuilder)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// makeBuilderFactory selects the cart-building strategy from the config.
func makeBuilderFactory(cfg config.Config, logger logging.Logger) api.BuilderFactory {
	agentOpts := func(o *builder.AgentOptions) {
		o.MaxRounds = cfg.MaxRounds
		o.RoundTimeout = cfg.RoundTimeout
		o.Logger = logger
	}

	switch cfg.CartBuilder {
	case config.BuilderOpenAI:
		return func(cartAPI instamart.API) builder.CartBuilder {
			var llm model.Model = openai.NewModel(func(o *openai.Options) {
				o.APIKey = cfg.OpenAIAPIKey
			})
			return builder.NewAgentCartBuilder(llm, cartAPI, agentOpts)
		}
	case config.BuilderScripted:
		return func(cartAPI instamart.API) builder.CartBuilder {
			return builder.NewScriptedCartBuilder(cartAPI, func(o *builder.ScriptedOptions) {
				o.Logger = logger
			})
		}
	default:
		return func(cartAPI instamart.API) builder.CartBuilder {
			var llm model.Model = anthropic.NewModel(func(o *anthropic.Options) {
				o.APIKey = cfg.AnthropicAPIKey
			})
			return builder.NewAgentCartBuilder(llm, cartAPI, agentOpts)
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
