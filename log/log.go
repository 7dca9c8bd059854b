// Copyright (C) 2019 Cranky Kernel
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package log is a thin wrapper around logrus so the rest of the code base
// can log without importing logrus directly.
package log

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Fields = logrus.Fields

type LogLevel = logrus.Level

const (
	LogLevelError = logrus.ErrorLevel
	LogLevelWarn  = logrus.WarnLevel
	LogLevelInfo  = logrus.InfoLevel
	LogLevelDebug = logrus.DebugLevel
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetLevel(logrus.InfoLevel)
}

func SetLevel(level LogLevel) {
	logger.SetLevel(level)
}

// ParseLevel accepts the usual logrus level names ("debug", "info", ...).
func ParseLevel(name string) (LogLevel, error) {
	return logrus.ParseLevel(name)
}

func AddHook(hook logrus.Hook) {
	logger.AddHook(hook)
}

func Logger() *logrus.Logger {
	return logger
}

func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return logger.WithField(key, value)
}

func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Info(args ...interface{}) {
	logger.Info(args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func Printf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Println(args ...interface{}) {
	logger.Println(args...)
}

func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// ToJson renders a value for inclusion in a log line. Marshalling failures
// are returned as the error text rather than dropped.
func ToJson(val interface{}) string {
	buf, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(buf)
}

// FileOutputHook duplicates every log entry to a file as JSON.
type FileOutputHook struct {
	lock      sync.Mutex
	filename  string
	file      *os.File
	formatter logrus.Formatter
}

func NewFileOutputHook(filename string) *FileOutputHook {
	return &FileOutputHook{
		filename:  filename,
		formatter: &logrus.JSONFormatter{},
	}
}

func (h *FileOutputHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FileOutputHook) Fire(entry *logrus.Entry) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.file == nil {
		file, err := os.OpenFile(h.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
		h.file = file
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.file.Write(line)
	return err
}
