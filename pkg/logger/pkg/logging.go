package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Level  string
	Pretty bool
}

type requestIDKey struct{}

var (
	_logger           = NewTmpLogger()
	_xRequestIDHeader = "x_request_id"
)

func ReadConfig() *Config {
	viper.BindEnv("logger.level", "LOG_LEVEL")
	return &Config{
		Level:  viper.GetString("logger.level"),
		Pretty: viper.GetBool("logger.pretty"),
	}
}

func NewLogger(msg *Config) (*zap.Logger, error) {
	var c zap.Config
	var opts []zap.Option
	if msg.Pretty {
		c = zap.NewDevelopmentConfig()
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	} else {
		c = zap.NewProductionConfig()
	}

	level := zap.NewAtomicLevel()

	levelName := "INFO"
	if msg.Level != "" {
		levelName = strings.ToUpper(msg.Level)
	}

	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level %s", msg.Level)
	}
	c.Level = level

	return c.Build(opts...)
}

func InitLogger(msg *Config) (err error) {
	l, err := NewLogger(msg)
	if err != nil {
		return err
	}
	_logger = l
	return nil
}

func NewTmpLogger() *zap.Logger {
	c := zap.NewProductionConfig()
	c.DisableStacktrace = true
	l, err := c.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Logger Return new logger with context value
// ctx:  nillable
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil || ctx == context.TODO() {
		return _logger
	}
	return injectXRequestID(_logger, ctx)
}

func SetXRequestIDHeader(headerName string) {
	_xRequestIDHeader = headerName
}

// WithRequestID stores the request id that Logger attaches to every entry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func injectXRequestID(logger *zap.Logger, ctx context.Context) *zap.Logger {
	requestID := getRequestID(ctx)
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String(_xRequestIDHeader, requestID))
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
