package observability

import "github.com/sirupsen/logrus"

// Logrus adapts a logrus entry to Logger.
type Logrus struct {
	entry *logrus.Entry
}

func NewLogrus(entry *logrus.Entry) *Logrus {
	return &Logrus{entry: entry}
}

func (l *Logrus) Debug(msg string, fields ...Field) { l.with(fields).Debug(msg) }
func (l *Logrus) Info(msg string, fields ...Field)  { l.with(fields).Info(msg) }
func (l *Logrus) Warn(msg string, fields ...Field)  { l.with(fields).Warn(msg) }
func (l *Logrus) Error(msg string, fields ...Field) { l.with(fields).Error(msg) }

func (l *Logrus) With(fields ...Field) Logger {
	return &Logrus{entry: l.with(fields)}
}

func (l *Logrus) with(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value().(error); ok {
			if err == nil {
				continue
			}
			lf[f.Key()] = err.Error()
			continue
		}
		lf[f.Key()] = f.Value()
	}
	return l.entry.WithFields(lf)
}
