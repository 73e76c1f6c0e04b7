package common

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LOG_LEVEL int

const (
	LEVEL_DEBUG LOG_LEVEL = iota
	LEVEL_INFO
	LEVEL_WARN
	LEVEL_ERROR
)

var (
	LOG_LEVEL_Name = map[LOG_LEVEL]string{
		0: "DEBUG",
		1: "INFO",
		2: "WARN",
		3: "ERROR",
	}
	LOG_LEVEL_Value = map[string]LOG_LEVEL{
		"DEBUG": 0,
		"INFO":  1,
		"WARN":  2,
		"ERROR": 3,
	}
)

const (
	LOG_MODE_DEV  = "DEV"
	LOG_MODE_PROD = "PROD"
)

type LogConfig struct {
	BriefMode          string
	ModuleSpecialLevel map[string]LOG_LEVEL // per-module override

	LogPath        string
	LogLevel       LOG_LEVEL
	RotationMaxAge int // days
	RotationTime   int // hours
	RotationSize   int // MB
	ShowLine       bool
	LogInConsole   bool
	LogInFile      bool
}

// ParseLogLevel maps a config string such as "info" to a LOG_LEVEL,
// falling back to INFO for anything it does not recognise.
func ParseLogLevel(s string) LOG_LEVEL {
	if lvl, ok := LOG_LEVEL_Value[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return LEVEL_INFO
}

func DefaultLogConfig(isDEV bool) *LogConfig {
	if isDEV {
		return defaultBriefLogConfigForDEV()
	}

	return defaultBriefLogConfigForPROD()
}

func defaultBriefLogConfigForDEV() *LogConfig {
	return &LogConfig{
		LogPath:        "./log/vizdemo.dev.log",
		LogLevel:       LEVEL_DEBUG,
		RotationMaxAge: 1,
		RotationTime:   1,
		RotationSize:   10,
		ShowLine:       true,
		LogInConsole:   true,
	}
}

func defaultBriefLogConfigForPROD() *LogConfig {
	return &LogConfig{
		LogPath:        "./log/vizdemo.log",
		LogLevel:       LEVEL_INFO,
		RotationMaxAge: 7,
		RotationTime:   24,
		RotationSize:   30,
		ShowLine:       true,
		LogInFile:      true,
	}
}

func adjustLogConfig(name string, lc *LogConfig) *LogConfig {
	if lc.BriefMode != "" {
		return DefaultLogConfig(lc.BriefMode != LOG_MODE_PROD)
	}

	newC := *lc
	if lvl, ok := lc.ModuleSpecialLevel[name]; ok {
		newC.LogLevel = lvl
	}
	return &newC
}

func zapLevelOf(lvl LOG_LEVEL) zapcore.Level {
	switch lvl {
	case LEVEL_DEBUG:
		return zap.DebugLevel
	case LEVEL_INFO:
		return zap.InfoLevel
	case LEVEL_WARN:
		return zap.WarnLevel
	case LEVEL_ERROR:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func NewSugaredLogger(name string, lc *LogConfig) *zap.SugaredLogger {
	lcc := adjustLogConfig(name, lc)

	zapLevel := zapLevelOf(lcc.LogLevel)
	priorityLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapLevel
	})

	var syncers []zapcore.WriteSyncer
	if lcc.LogInConsole {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if lcc.LogInFile || !lcc.LogInConsole {
		rotationWriter, err := rotatelogs.New(
			lcc.LogPath+".%Y%m%d%H",
			rotatelogs.WithLinkName(lcc.LogPath),
			rotatelogs.WithRotationTime(time.Duration(lcc.RotationTime)*time.Hour),
			rotatelogs.WithRotationSize(int64(lcc.RotationSize*1024*1024)),
			rotatelogs.WithMaxAge(time.Hour*24*time.Duration(lcc.RotationMaxAge)),
		)
		if err != nil {
			log.Fatalf("new rotation log failed, %s", err)
		}
		syncers = append(syncers, zapcore.AddSync(rotationWriter))
	}

	customLevelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	customTimeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(syncers...), priorityLevel)

	var opts []zap.Option
	if lcc.ShowLine {
		opts = append(opts, zap.AddCaller())
	}
	// VizLogger wraps every call, so skip one frame
	opts = append(opts, zap.AddCallerSkip(1))

	return zap.New(core, opts...).Named(name).Sugar()
}

const (
	MODULE_DEMO   = "[Demo]"
	MODULE_ML     = "[ML]"
	MODULE_RENDER = "[Render]"
	MODULE_KPI    = "[KPI]"
	MODULE_HTTP   = "[HTTP]"
	MODULE_NODE   = "[Node]"
)

var modules = []string{MODULE_DEMO, MODULE_ML, MODULE_RENDER, MODULE_KPI, MODULE_HTTP, MODULE_NODE}

// ModuleByName finds a module by its bare, case-insensitive name, so "demo"
// in a config file means MODULE_DEMO.
func ModuleByName(name string) (string, bool) {
	name = strings.Trim(strings.TrimSpace(name), "[]")
	for _, m := range modules {
		if strings.EqualFold(strings.Trim(m, "[]"), name) {
			return m, true
		}
	}
	return "", false
}

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

type VizLogger struct {
	zlog  *zap.SugaredLogger
	name  string
	mutex sync.RWMutex
}

func (l *VizLogger) Logger() *zap.SugaredLogger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.zlog
}

func (l *VizLogger) Debug(args ...interface{}) {
	l.Logger().Debug(args...)
}

func (l *VizLogger) Debugf(format string, args ...interface{}) {
	l.Logger().Debugf(format, args...)
}

func (l *VizLogger) Info(args ...interface{}) {
	l.Logger().Info(args...)
}

func (l *VizLogger) Infof(format string, args ...interface{}) {
	l.Logger().Infof(format, args...)
}

func (l *VizLogger) Warn(args ...interface{}) {
	l.Logger().Warn(args...)
}

func (l *VizLogger) Warnf(format string, args ...interface{}) {
	l.Logger().Warnf(format, args...)
}

func (l *VizLogger) Error(args ...interface{}) {
	l.Logger().Error(args...)
}

func (l *VizLogger) Errorf(format string, args ...interface{}) {
	l.Logger().Errorf(format, args...)
}

func (l *VizLogger) Fatalf(format string, args ...interface{}) {
	l.Logger().Fatalf(format, args...)
}

func (l *VizLogger) SetLogger(logger *zap.SugaredLogger) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.zlog = logger
}

func (l *VizLogger) Sync() error {
	return l.Logger().Sync()
}

var (
	vizLoggersMap = make(map[string]*VizLogger)
	loggerMutex   sync.RWMutex
	vizLogConfig  *LogConfig
)

func GetLogger(name string) *VizLogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if logger, ok := vizLoggersMap[name]; ok {
		return logger
	}

	if vizLogConfig == nil {
		vizLogConfig = DefaultLogConfig(true)
	}

	logger := &VizLogger{
		name: name,
		zlog: NewSugaredLogger(name, vizLogConfig),
	}
	vizLoggersMap[name] = logger

	return logger
}

// SetLogConfig replaces the config and rebuilds every logger handed out so far.
func SetLogConfig(config *LogConfig) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	vizLogConfig = config
	for _, logger := range vizLoggersMap {
		logger.SetLogger(NewSugaredLogger(logger.name, vizLogConfig))
	}
}
