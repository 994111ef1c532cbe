package log

import (
	"fmt"
	"io"
	"time"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/praevisio/vigilance/internal/config"
)

var logger = logr.Discard()

// Init replaces the global logger. conf.Level is the logr verbosity: 0 is info, 1 debug, 2 trace.
func Init(conf config.Logs, output io.Writer) error {
	backend := logrus.New()

	backend.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))
	backend.SetOutput(output)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		backend.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case config.EncoderTypeJson:
		backend.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		return fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	logger = logrusr.New(backend, logrusr.WithReportCaller()).WithName("praevisio")

	return nil
}

func Logger() logr.Logger {
	return logger
}
