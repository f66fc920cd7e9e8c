package model

import "time"

// ResultsExport is the top-level JSON structure for exam result export.
type ResultsExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	Owner      string         `json:"owner,omitempty"`
	NumResults int            `json:"num_results"`
	Results    []ExportResult `json:"results"`
}

// ExportResult holds one exam result with its owner and question set labels.
type ExportResult struct {
	OwnerEmail  string `json:"owner_email"`
	SetName     string `json:"question_set,omitempty"`
	SetLanguage string `json:"language,omitempty"`
	ExamResult
}
