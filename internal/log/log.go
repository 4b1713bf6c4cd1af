package log

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	l, err := New("info", "")
	if err != nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// New builds a JSON logger writing to stdout and, when logFile is set,
// appending to that file as well.
func New(level, logFile string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		_ = lvl.UnmarshalText([]byte("info"))
	}

	outputs := []string{"stdout"}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			_ = f.Close()
			outputs = append(outputs, logFile)
		}
	}

	cfg := zap.Config{
		Level:    lvl,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "msg",
			TimeKey:     "ts",
			LevelKey:    "level",
			EncodeTime:  zapcore.RFC3339TimeEncoder,
			EncodeLevel: zapcore.LowercaseLevelEncoder,
		},
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// Use replaces the process logger.
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// L returns the process logger for code that has no request at hand.
func L() *zap.Logger { return current.Load() }

func write(level zapcore.Level, kind string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	l := current.Load()
	zf := make([]zap.Field, 0, 10)
	zf = append(zf, zap.String("action", action))
	if kind != "" {
		zf = append(zf, zap.String("kind", kind))
	}
	if c != nil {
		zf = append(zf,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			zf = append(zf, zap.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			zf = append(zf, zap.String("user_id", uid))
		}
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	if ce := l.Check(level, action); ce != nil {
		ce.Write(zf...)
	}
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "", c, action, nil, fields)
}
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.InfoLevel, "audit", c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(zapcore.WarnLevel, "security", c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zapcore.ErrorLevel, "", c, action, err, fields)
}
