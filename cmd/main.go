package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/clients/rosters"
	"github.com/practice-sem-2/chat-service/internal/server"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func initLogger(level string) *logrus.Logger {

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.
			WithField("log_level", level).
			Warning("specified invalid log level")
	} else {
		logger.SetLevel(logLevel)
		logger.
			WithField("log_level", level).
			Infof("specified %s log level", logLevel.String())
	}

	return logger
}

func initDB(dsn string, logger *logrus.Logger) *sqlx.DB {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		logger.Fatalf("can't connect to database: %s", err.Error())
	}

	err = db.Ping()

	if err != nil {
		logger.Fatalf("database ping failed: %s", err.Error())
	}

	logger.Info("successfully connected to database")
	return db
}

func initProducer(logger *logrus.Logger) sarama.SyncProducer {
	brokers := viper.GetString("KAFKA_BROKERS")
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS environment variable must be defined")
	}

	addrs := strings.Split(brokers, ",")
	config := sarama.NewConfig()
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 10 * time.Second
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(addrs, config)

	if err != nil {
		logger.WithError(err).Fatalf("can't create producer")
	}

	return producer
}

func loadLimits() usecase.Limits {
	limits := usecase.DefaultLimits()
	if viper.IsSet("PIN_LIMIT") {
		limits.PinLimit = viper.GetInt("PIN_LIMIT")
	}
	if viper.IsSet("GROUP_MEMBER_LIMIT") {
		limits.GroupMemberLimit = viper.GetInt("GROUP_MEMBER_LIMIT")
	}
	if viper.IsSet("EDIT_WINDOW_MINUTES") {
		limits.EditWindow = time.Duration(viper.GetInt("EDIT_WINDOW_MINUTES")) * time.Minute
	}
	return limits
}

func main() {
	viper.AutomaticEnv()

	var host string
	var port int
	var logLevel string

	flag.IntVar(&port, "port", 80, "port on which server will be started")
	flag.StringVar(&host, "host", "0.0.0.0", "host on which server will be started")
	flag.StringVar(&logLevel, "log", "info", "log level")

	flag.Parse()

	logger := initLogger(logLevel)

	db := initDB(viper.GetString("DB_DSN"), logger)
	defer func(db *sqlx.DB) {
		err := db.Close()
		if err != nil {
			logger.Fatalf("during db connection close an error occurred: %s", err.Error())
		}
	}(db)

	producer := initProducer(logger)

	store := storage.NewRegistry(db, producer, &storage.UpdatesStoreConfig{
		UpdatesTopic: viper.GetString("UPDATES_TOPIC"),
	})

	rosterClient := rosters.NewClient(viper.GetString("ROSTER_SERVICE_URL"))
	chatsUsecase := usecase.NewChatsUsecase(store, rosterClient, loadLimits())

	verifier, err := auth.NewVerifierFromFile(viper.GetString("JWT_PUBLIC_KEY_PATH"))
	if err != nil {
		logger.Fatalf("verifier can't read public key: %s", err.Error())
	}

	validate := validator.New()
	chatServer := server.NewChatServer(chatsUsecase, validate, logger)
	router := server.NewRouter(chatServer, verifier, logger)

	address := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:    address,
		Handler: router,
	}

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		sig := <-osSignal
		logger.Infof("%s caught. Gracefully shutdown", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err.Error())
		}
	}()

	logger.Infof("start listening on %s", address)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http serving error: %s", err.Error())
	}
}
