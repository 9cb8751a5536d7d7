package logging

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	// Set up the logger
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
}

// EnableDebugMessages lowers the log level so Debug messages are printed
func EnableDebugMessages() {
	log.SetLevel(logrus.DebugLevel)
}

// SetOutput redirects all log messages to w
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Success logs an informational message marking the end of a successful run
func Success(format string, args ...interface{}) {
	log.WithField("status", "success").Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Progress represents a progress bar - used for the in-progress logging in case of long running command
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a new progress bar
func NewProgress(description string, total int) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)

	return &Progress{
		bar: bar,
	}
}

// Increment advances the progress bar by one; safe for concurrent use
func (p *Progress) Increment() {
	p.bar.Add(1)
}

// Complete completes the progress bar
func (p *Progress) Complete() {
	p.bar.Finish()
}
