package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger: console output at debug level in dev mode,
// JSON at info level otherwise.
func New(dev bool) (*zap.Logger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// DeployLogger collects the timestamped lines of a single deployment and
// fans each one out to onLine.
type DeployLogger struct {
	deploymentID string
	lines        []string
	mu           sync.Mutex
	onLine       func(deploymentID, line string)
	now          func() time.Time
}

func NewDeployLogger(deploymentID string, onLine func(deploymentID, line string)) *DeployLogger {
	return &DeployLogger{
		deploymentID: deploymentID,
		onLine:       onLine,
		now:          time.Now,
	}
}

func (l *DeployLogger) Log(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	full := fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), line)

	l.mu.Lock()
	l.lines = append(l.lines, full)
	l.mu.Unlock()

	zap.S().Debugw(line, "deployment", l.deploymentID)

	if l.onLine != nil {
		l.onLine(l.deploymentID, full)
	}
}

func (l *DeployLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]string, len(l.lines))
	copy(cp, l.lines)
	return cp
}
