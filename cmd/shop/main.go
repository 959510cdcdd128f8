package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/storefront/api"
	"storefront/internal/storefront/checkout"
	"storefront/internal/storefront/kv"
	"storefront/internal/storefront/session"
)

type settings struct {
	APIURL    string `mapstructure:"api_url"`
	State     string `mapstructure:"state"`
	RedisAddr string `mapstructure:"redis_addr"`
	Session   string `mapstructure:"session"`
}

func loadSettings() (settings, error) {
	v := viper.New()
	v.SetEnvPrefix("shop")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("state", filepath.Join(home, ".storefront", "state.json"))
	v.SetDefault("redis_addr", "")
	v.SetDefault("session", "default")

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return s, err
	}
	return s, nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStore(ctx context.Context, s settings) (kv.Store, func(), error) {
	if s.RedisAddr == "" {
		store, err := kv.NewFileStore(s.State)
		return store, func() {}, err
	}
	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", s.RedisAddr, err)
	}
	return kv.NewRedisStore(client, s.Session), func() { client.Close() }, nil
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeStore()

	sess := session.New(store, api.NewClient(cfg.APIURL), logger)
	if err := sess.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &app{sess: sess, out: os.Stdout, in: os.Stdin}
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

// describe turns errors into the short notices the web storefront showed
// as toasts.
func describe(err error) string {
	var vErr *checkout.ValidationError
	var sErr *checkout.SubmitError
	switch {
	case errors.Is(err, errUsage):
		return err.Error()
	case errors.As(err, &vErr):
		return "Please fill in: " + joinFields(vErr.Fields)
	case errors.As(err, &sErr):
		return sErr.Message
	case errors.Is(err, session.ErrNotLoggedIn):
		return "Please log in first (shop login <email> <password>)"
	case errors.Is(err, api.ErrAuth):
		return "Session expired or invalid credentials, please log in again"
	}
	return sentence(api.Message(err, err.Error()))
}

// sentence capitalizes the first letter of a message for display.
func sentence(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
