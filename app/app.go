package app

import (
	"context"
	"github.com/lefinal/pug-server/accounts"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/logging"
	"github.com/lefinal/pug-server/portal"
	"github.com/lefinal/pug-server/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	"os"
)

// App is a complete PUG server instance.
type App struct {
	// config is the main config used for the App.
	config Config
}

// NewApp creates a new App with the given Config. Boot it with App.Boot.
func NewApp(config Config) *App {
	return &App{
		config: config,
	}
}

// Boot sets everything up based on the set config and boots. It returns when
// the given context.Context is done or booting fails.
func (app *App) Boot(ctx context.Context) error {
	// Validate config.
	err := ValidateConfig(app.config)
	if err != nil {
		return errors.Wrap(err, "invalid config", nil)
	}
	// Setup logger.
	logger, publishLog := setupLogging(ctx, app.config.Log)
	logging.ApplyToGlobalLoggers(logger)
	defer func() {
		_ = logger.Sync()
	}()
	// Boot.
	err = app.boot(ctx, logger, publishLog)
	if err != nil {
		err = errors.Wrap(err, "boot", nil)
		errors.Log(logging.AppLogger, err)
		return err
	}
	return nil
}

func (app *App) boot(ctx context.Context, logger *zap.Logger, publishLog <-chan logging.LogEntry) error {
	logging.AppLogger.Warn("booting up")
	// Connect database.
	logging.AppLogger.Debug("connecting to database")
	db, err := connectDB(ctx, logging.DBLogger, app.config.DBConn, app.config.MaxDBConnections)
	if err != nil {
		return errors.Wrap(err, "connect database", nil)
	}
	defer db.Close()
	mall := store.NewMall(logging.DBLogger, db)
	logging.AppLogger.Debug("database ready")
	// Connect Redis.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     app.config.Redis.Addr,
		Password: app.config.Redis.Password.String,
		DB:       app.config.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()
	err = redisClient.Ping(ctx).Err()
	if err != nil {
		return errors.Error{
			Code:    errors.ErrFatal,
			Kind:    errors.KindUnexpected,
			Err:     err,
			Message: "ping redis",
			Details: errors.Details{"addr": app.config.Redis.Addr},
		}
	}
	accountPool := accounts.NewPool(logger.Named("accounts"), redisClient, app.config.Redis.KeyPrefix)
	err = accountPool.Seed(ctx, app.config.Redis.Accounts)
	if err != nil {
		return errors.Wrap(err, "seed account pool", nil)
	}
	logging.AppLogger.Debug("account pool ready")
	// Setup portal.
	portalBase, err := portal.NewBase(logging.MQTTLogger, portal.Config{MQTTAddr: app.config.MQTTAddr})
	if err != nil {
		return errors.Wrap(err, "new portal base", nil)
	}
	logging.AppLogger.Debug("setting up services")
	appServices, err := createServices(ctx, app.config, logger, portalBase, mall, accountPool, publishLog)
	if err != nil {
		return errors.Wrap(err, "create services", nil)
	}
	logging.AppLogger.Debug("setup completed. booting...")
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := portalBase.Open(egCtx)
		if err != nil {
			return errors.Wrap(err, "open portal", nil)
		}
		return nil
	})
	eg.Go(func() error {
		err := appServices.run(egCtx, logging.AppLogger)
		if err != nil {
			return errors.Wrap(err, "run services", nil)
		}
		return nil
	})
	logging.AppLogger.Warn("up and running")
	err = eg.Wait()
	logging.AppLogger.Warn("shutting down")
	return err
}

// setupLogging creates the logger for the given LogConfig. Log entries to
// publish are forwarded to the returned channel until the given
// context.Context is done.
func setupLogging(ctx context.Context, config LogConfig) (*zap.Logger, <-chan logging.LogEntry) {
	encConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	cores := make([]zapcore.Core, 0)
	// Setup stdout logger with colorful level output.
	stdOutEncConfig := encConfig
	stdOutEncConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(stdOutEncConfig),
		zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= config.StdoutLogLevel && level < zap.ErrorLevel
		})))
	// Setup error logger.
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(encConfig),
		zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.ErrorLevel
		})))
	// Setup high priority logger.
	if config.HighPriorityOutput.Valid {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: config.HighPriorityOutput.String,
				MaxSize:  config.MaxSize,
				MaxAge:   config.KeepDays,
			}),
			zap.LevelEnablerFunc(func(level zapcore.Level) bool {
				return level >= zap.WarnLevel
			})))
	}
	// Setup debug logger.
	if config.DebugOutput.Valid {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename: config.DebugOutput.String,
				MaxSize:  config.MaxSize,
				MaxAge:   config.KeepDays,
			}),
			zap.LevelEnablerFunc(func(level zapcore.Level) bool {
				return level >= zap.DebugLevel
			})))
	}
	// Setup publish logger.
	publishCore, publishLog := logging.NewPublishCore(ctx, config.PublishLogLevel)
	cores = append(cores, publishCore)
	// Combine.
	logger := zap.New(zapcore.NewTee(cores...))
	return logger, publishLog
}
