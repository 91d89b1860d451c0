package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

const RequestIDKey = "request_id"

type Fields = logrus.Fields

// NewLogger builds the process logger once. APP_ENV=test keeps output on
// stderr only; LOG_LEVEL overrides the default debug level.
func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(levelFromEnv())

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        os.Getenv("APP_ENV") == "production",
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}

		if os.Getenv("APP_ENV") != "test" {
			dir := os.Getenv("LOG_DIR")
			if dir == "" {
				dir = "./storage/logs"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   fmt.Sprintf("%s/vision-%s.log", dir, time.Now().Format("2006-01-02")),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})

	return logger
}

func levelFromEnv() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

// ErrorWithTraceID logs on l and returns the trace id attached to the entry:
// the request id when present, a fresh UUID otherwise.
func ErrorWithTraceID(l *logrus.Logger, fields Fields, msg string) string {
	if fields == nil {
		fields = Fields{}
	}

	traceID, _ := fields[RequestIDKey].(string)
	if traceID == "" || traceID == "unknown" {
		id, err := uuid.NewRandom()
		if err != nil {
			traceID = "unknown"
		} else {
			traceID = id.String()
		}
	}

	fields["trace_id"] = traceID
	l.WithFields(fields).Error(msg)

	return traceID
}
