package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with registry-specific helpers
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithLicense creates a new logger entry with a doctor license number field
func (l *Logger) WithLicense(license string) *logrus.Entry {
	return l.Logger.WithField("license_number", license)
}

// WithPrincipal creates a new logger entry with a caller principal field
func (l *Logger) WithPrincipal(principal string) *logrus.Entry {
	return l.Logger.WithField("principal", principal)
}

// Audit logs registry audit events with structured format
func (l *Logger) Audit(principal, operation, license string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":          true,
		"principal":      principal,
		"operation":      operation,
		"license_number": license,
		"success":        success,
		"details":        details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// RegistryEvent logs an emitted notification record
func (l *Logger) RegistryEvent(eventType, eventID string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"event":    true,
		"type":     eventType,
		"event_id": eventID,
		"details":  details,
	}).Info("Registry event emitted")
}
