package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/chessrep/movetree/internal/config"
	"github.com/chessrep/movetree/store"
)

const usage = `usage: movetree [--config file] <command> [args]

commands:
  import --study ID [--name NAME] FILE.pgn   store a PGN game as a new chapter
  show CHAPTER                               print the chapter and the cursor position
  nav CHAPTER STEP...                        move the cursor and save it

steps:
  back | forward | start | end | exit
  main N | var ANCHOR N | root N | move SAN
`

type app struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	out      io.Writer
	chapters *store.ChapterStore
	cache    *store.CursorCache
}

type dataBaseAdapters struct {
	mongo *mongo.Client
	redis *redis.Client
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	flags := pflag.NewFlagSet("movetree", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	cfgPath := flags.StringP("config", "c", "", "config file (default: $XDG_CONFIG_HOME/movetree/config.yaml)")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := flags.Parse(argv); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := NewLogger(cfg.Log)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel, logger)

	adapters, err := initDatabaseAdapters(ctx, logger, cfg)
	if err != nil {
		logger.Errorw("failed to initialize storage", "error", err)
		return 1
	}
	defer adapters.close(context.Background())

	a := &app{
		cfg:      cfg,
		log:      logger,
		out:      os.Stdout,
		chapters: store.NewChapterStore(adapters.mongo.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection), logger),
		cache:    store.NewCursorCache(adapters.redis, cfg.Redis.CursorTTL, logger),
	}

	cmd, args := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "import":
		err = a.importPGN(ctx, args)
	case "show":
		err = a.show(ctx, args)
	case "nav":
		err = a.nav(ctx, args)
	default:
		flags.Usage()
		return 2
	}
	if err != nil {
		logger.Errorw("command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

func NewLogger(cfg config.LogConfig) *zap.SugaredLogger {
	logger, err := cfg.Logger()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func initDatabaseAdapters(ctx context.Context, log *zap.SugaredLogger, cfg *config.Config) (*dataBaseAdapters, error) {
	mongoClient, err := store.Connect(ctx, cfg.Mongo.URI, log)
	if err != nil {
		return nil, err
	}
	redisClient, err := store.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB, log)
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, err
	}
	return &dataBaseAdapters{
		mongo: mongoClient,
		redis: redisClient,
	}, nil
}

func (d *dataBaseAdapters) close(ctx context.Context) {
	_ = d.mongo.Disconnect(ctx)
	_ = d.redis.Close()
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
