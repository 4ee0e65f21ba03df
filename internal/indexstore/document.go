package indexstore

import "time"

// Document is the unit IndexStore persists and retrieves: one file, analyzed
// into three parallel text fields so QueryBuilder can target whichever shape
// a query mode needs (spec.md §3, §4.1).
type Document struct {
	Path              string    `json:"path"`
	RelativePath      string    `json:"relative_path"`
	Filename          string    `json:"filename"`
	FilenameLower     string    `json:"filename_lower"`
	Extension         string    `json:"extension"`
	Directory         string    `json:"directory"`          // absolute directory containing the file
	RelativeDirectory string    `json:"relative_directory"` // directory relative to the workspace root
	DirectoryName     string    `json:"directory_name"`     // last path component of Directory
	Size              int64     `json:"size"`
	Modified          time.Time `json:"modified"`
	LineCount         int       `json:"line_count"`
	Content           string    `json:"content"`
	ContentSymbols    string    `json:"content_symbols"`
	ContentPatterns   string    `json:"content_patterns"`
	ContentHash       string    `json:"content_hash"`
}
