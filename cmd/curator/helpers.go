package main

import (
	"time"

	"curator/internal/config"
	"curator/internal/drive"
)

func retryPolicy(cfg *config.Config) drive.RetryPolicy {
	return drive.RetryPolicy{
		MaxAttempts:    cfg.Drive.RetryMaxAttempts,
		InitialBackoff: time.Duration(cfg.Drive.RetryInitialDelay) * time.Second,
		MaxBackoff:     time.Duration(cfg.Drive.RetryMaxDelay) * time.Second,
		CallTimeout:    time.Duration(cfg.Drive.RequestTimeout) * time.Second,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}
