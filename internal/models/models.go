package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Recording is the index entry for one completed recording. The script and
// its side-car live on disk; the row only points at them.
type Recording struct {
	BaseModel
	Name            string `json:"name" gorm:"size:200;not null"`
	URL             string `json:"url" gorm:"size:1000;not null"`
	Device          string `json:"device" gorm:"size:100"`
	ScriptPath      string `json:"script_path" gorm:"size:1000;not null"`
	ScrollDataPath  string `json:"scroll_data_path" gorm:"size:1000"`
	ExportPath      string `json:"export_path" gorm:"size:1000"`
	StepCount       int    `json:"step_count"`
	ScrollStepCount int    `json:"scroll_step_count"`
	Content         string `json:"content,omitempty" gorm:"type:longtext"`
	Status          string `json:"status" gorm:"size:20;default:'completed'"` // completed, exported
}

type Replay struct {
	BaseModel
	RecordingID  uint       `json:"recording_id" gorm:"index;not null"`
	Status       string     `json:"status" gorm:"size:20"` // running, passed, failed
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Duration     int        `json:"duration"` // in milliseconds
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	Logs         string     `json:"logs" gorm:"type:longtext"` // JSON format ReplayLog array
}

type ReplayLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // info, warn, error
	Message   string    `json:"message"`
	StepIndex int       `json:"step_index"`
	Action    string    `json:"action,omitempty"`
	Selector  string    `json:"selector,omitempty"`
	Duration  int64     `json:"duration_ms,omitempty"`
}

func (r *Replay) GetLogs() ([]ReplayLog, error) {
	var logs []ReplayLog
	if r.Logs == "" {
		return logs, nil
	}
	err := json.Unmarshal([]byte(r.Logs), &logs)
	return logs, err
}
