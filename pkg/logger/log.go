package logger

import (
	"reflect"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var loggerCache = make(map[string]*logrus.Logger)
var mutex = new(sync.Mutex)

// Logger returns the shared logger for the component type of target. Every
// entry it emits carries a name field with that type name.
func Logger(target any) *logrus.Logger {
	mutex.Lock()
	defer mutex.Unlock()

	typeName := componentName(target)
	if logger, ok := loggerCache[typeName]; ok {
		return logger
	}

	logger := logrus.New()
	logger.SetLevel(logrus.StandardLogger().Level)
	logger.SetOutput(logrus.StandardLogger().Out)
	logger.SetFormatter(namedLogger{
		name:      typeName,
		formatter: logrus.StandardLogger().Formatter,
	})
	loggerCache[typeName] = logger

	return logger
}

// SetLevel parses level and applies it to the standard logger and to every
// cached component logger.
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		return nil
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	mutex.Lock()
	defer mutex.Unlock()

	logrus.SetLevel(lvl)
	for _, logger := range loggerCache {
		logger.SetLevel(lvl)
	}

	return nil
}

func componentName(target any) string {
	if name, ok := target.(string); ok {
		return name
	}

	var name string
	t := reflect.TypeOf(target)
	if t == nil {
		return "unknown"
	}
	if t.Kind() == reflect.Ptr {
		name = t.Elem().Name()
	} else {
		name = t.Name()
	}

	return name
}

type namedLogger struct {
	name      string
	formatter logrus.Formatter
}

func (d namedLogger) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Data["name"] = d.name
	return d.formatter.Format(entry)
}
