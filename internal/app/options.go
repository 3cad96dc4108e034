package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dujiao-next/backoffice/internal/config"
	"github.com/dujiao-next/backoffice/internal/logger"

	"go.uber.org/zap"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	opts.Mode = strings.ToLower(strings.TrimSpace(opts.Mode))
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

// ValidateMode 校验启动模式
func ValidateMode(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeAll, ModeAPI, ModeWorker:
		return nil
	default:
		return fmt.Errorf("unsupported mode %q, expect one of %s/%s/%s", mode, ModeAll, ModeAPI, ModeWorker)
	}
}
