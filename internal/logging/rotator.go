// Package logging provides the rotated event-log sink the decode core
// writes TrackEvents and AnomalyEvents to. Files rotate daily and closed
// files are gzip-compressed in the background.
package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Rotator manages the current event log file and its daily rotation.
type Rotator struct {
	logDir      string
	useUTC      bool
	logger      *logrus.Logger
	currentFile *os.File
	currentDate string
	mutex       sync.RWMutex
}

// NewRotator creates the log directory and opens the current file.
func NewRotator(logDir string, useUTC bool, logger *logrus.Logger) (*Rotator, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		logDir: logDir,
		useUTC: useUTC,
		logger: logger,
	}
	if err := r.rotate(); err != nil {
		return nil, fmt.Errorf("failed to initialize event log: %w", err)
	}
	return r, nil
}

// Start runs the rotation check loop until the context is canceled.
func (r *Rotator) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Event log rotator stopping")
			return
		case <-ticker.C:
			r.checkRotation()
		}
	}
}

func (r *Rotator) now() time.Time {
	if r.useUTC {
		return time.Now().UTC()
	}
	return time.Now()
}

func (r *Rotator) checkRotation() {
	date := r.now().Format("2006-01-02")

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentDate != date {
		r.logger.WithFields(logrus.Fields{
			"old_date": r.currentDate,
			"new_date": date,
		}).Info("Rotating event log")
		if err := r.rotate(); err != nil {
			r.logger.WithError(err).Error("Failed to rotate event log")
		}
	}
}

func (r *Rotator) rotate() error {
	date := r.now().Format("2006-01-02")

	if r.currentFile != nil {
		oldDate := r.currentDate
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old event log")
		}
		go r.compress(oldDate)
	}

	path := filepath.Join(r.logDir, fmt.Sprintf("events_%s.log", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create event log %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = date
	r.logger.WithField("file", path).Info("Opened event log")
	return nil
}

func (r *Rotator) compress(date string) {
	logFile := filepath.Join(r.logDir, fmt.Sprintf("events_%s.log", date))
	gzipFile := logFile + ".gz"

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return
	}

	src, err := os.Open(logFile)
	if err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to open log for compression")
		return
	}
	defer src.Close()

	dst, err := os.Create(gzipFile)
	if err != nil {
		r.logger.WithError(err).WithField("file", gzipFile).Error("Failed to create compressed log")
		return
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(logFile)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, src); err != nil {
		r.logger.WithError(err).Error("Failed to compress event log")
		return
	}
	if err := gz.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to flush compressed event log")
		return
	}

	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to remove uncompressed log")
		return
	}

	r.logger.WithField("file", gzipFile).Info("Event log compressed")
}

// Writer returns the current event log writer.
func (r *Rotator) Writer() (io.Writer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return nil, fmt.Errorf("no current event log")
	}
	return r.currentFile, nil
}

// CurrentFile returns the current event log path.
func (r *Rotator) CurrentFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentDate == "" {
		return ""
	}
	return filepath.Join(r.logDir, fmt.Sprintf("events_%s.log", r.currentDate))
}

// Files lists all event log files, compressed ones included.
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, "events_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list event logs: %w", err)
	}
	return files, nil
}

// CleanupOld removes event logs older than maxDays.
func (r *Rotator) CleanupOld(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.Files()
	if err != nil {
		return err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	removed := 0
	for _, file := range files {
		if file == r.CurrentFile() {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old event log")
			} else {
				removed++
			}
		}
	}

	r.logger.WithField("count", removed).Info("Cleaned up old event logs")
	return nil
}

// Close closes the current file.
func (r *Rotator) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			return err
		}
		r.currentFile = nil
	}
	return nil
}
