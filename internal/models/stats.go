package models

import "time"

// DailyStat aggregates answers and study time for one local calendar day.
type DailyStat struct {
	Day           string `json:"day"`
	Reviews       int    `json:"reviews"`
	Correct       int    `json:"correct"`
	Wrong         int    `json:"wrong"`
	StudySeconds  int    `json:"study_seconds"`
	DistinctCards int    `json:"distinct_cards"`
}

type GlobalStat struct {
	Reviews      int `json:"reviews"`
	Correct      int `json:"correct"`
	Wrong        int `json:"wrong"`
	StudySeconds int `json:"study_seconds"`
	StudyDays    int `json:"study_days"`
}

type StatsSummary struct {
	Global     GlobalStat  `json:"global"`
	Today      DailyStat   `json:"today"`
	Recent     []DailyStat `json:"recent"`
	StreakDays int         `json:"streak_days"`
}

// SessionLog is the historical record of one finished study or exam session.
type SessionLog struct {
	ID              int64     `json:"id"`
	DeckID          string    `json:"deck_id"`
	Mode            string    `json:"mode"`
	DurationSeconds int       `json:"duration_seconds"`
	Correct         int       `json:"correct"`
	Wrong           int       `json:"wrong"`
	EndedAt         time.Time `json:"ended_at"`
}
