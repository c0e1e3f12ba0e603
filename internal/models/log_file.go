package models

import "time"

type LogFileInfo struct {
	Name     string    `json:"name"`
	SizeKB   float64   `json:"size_kb"`
	SizeMB   float64   `json:"size_mb"`
	Modified time.Time `json:"modified"`
}

type LogView struct {
	LogName        string     `json:"log_name"`
	TotalLines     int        `json:"total_lines"`
	FilteredLines  int        `json:"filtered_lines"`
	DisplayedLines int        `json:"displayed_lines"`
	Content        string     `json:"content"`
	Filters        LogFilters `json:"filters"`
}

type LogFilters struct {
	Search string `json:"search,omitempty"`
	Level  string `json:"level,omitempty"`
	Lines  int    `json:"lines"`
}

type LogTail struct {
	LogName    string `json:"log_name"`
	TotalLines int    `json:"total_lines"`
	TailLines  int    `json:"tail_lines"`
	Content    string `json:"content"`
}

type LogErrors struct {
	TotalErrors     int    `json:"total_errors"`
	DisplayedErrors int    `json:"displayed_errors"`
	Errors          string `json:"errors"`
}

type LogClearResult struct {
	LogName    string `json:"log_name"`
	Backup     string `json:"backup"`
	BackupPath string `json:"backup_path"`
}

type LogStats struct {
	TotalLogs          int        `json:"total_logs"`
	TotalSizeMB        float64    `json:"total_size_mb"`
	TotalSizeKB        float64    `json:"total_size_kb"`
	TotalErrors        int        `json:"total_errors"`
	LatestModification *time.Time `json:"latest_modification"`
	LogDirectory       string     `json:"log_directory"`
}
