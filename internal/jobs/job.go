// Package jobs содержит периодические задачи CRM, журнал аудита, блокировки и планировщик.
package jobs

import (
	"context"
	"errors"
	"os"
	"sync"
)

// Имена задач.
const (
	JobHeartbeat = "heartbeat"
	JobLowStock  = "low-stock"
	JobReport    = "report"
	JobReminders = "reminders"
)

// Job — задача без аргументов, которую вызывает планировщик.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// recordedError помечает сбой, уже записанный в журнал аудита:
// раннер учитывает его в метриках, но не возвращает планировщику.
type recordedError struct {
	err error
}

func (e *recordedError) Error() string { return e.err.Error() }
func (e *recordedError) Unwrap() error { return e.err }

func recorded(err error) error {
	if err == nil {
		return nil
	}
	return &recordedError{err: err}
}

// IsRecorded сообщает, что задача уже зафиксировала ошибку в журнале и не требует повтора.
func IsRecorded(err error) bool {
	var re *recordedError
	return errors.As(err, &re)
}

// AuditLog — журнал, в который задачи дописывают строки.
type AuditLog interface {
	Append(lines ...string) error
}

// FileAuditLog дописывает строки в текстовый файл.
type FileAuditLog struct {
	mu   sync.Mutex
	path string
}

// NewFileAuditLog создаёт журнал; файл появляется при первой записи.
func NewFileAuditLog(path string) *FileAuditLog {
	return &FileAuditLog{path: path}
}

// Path возвращает путь к файлу журнала.
func (l *FileAuditLog) Path() string {
	return l.path
}

// Append записывает строки одним вызовом write, каждую с переводом строки.
func (l *FileAuditLog) Append(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	var buf []byte
	for _, line := range lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
