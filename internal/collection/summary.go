package collection

import (
	"fmt"
	"strings"
)

// Operation names the bulk action a Summary reports on.
type Operation string

const (
	OpImportMovies  Operation = "import-movies"
	OpImportRatings Operation = "import-ratings"
	OpDeleteMany    Operation = "delete-many"
)

// maxErrors caps the messages a Summary keeps; Failed still counts every row.
const maxErrors = 20

// Summary aggregates the outcome of a bulk operation. Partial failure is a
// normal outcome and is reported here rather than as an error.
type Summary struct {
	Operation  Operation `json:"operation"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Applied    int       `json:"applied"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// Message renders the summary for humans, e.g. "12 added, 3 updated, 1 failed, 2 skipped".
func (s Summary) Message() string {
	var parts []string
	switch s.Operation {
	case OpImportMovies:
		parts = append(parts, fmt.Sprintf("%d added", s.Inserted), fmt.Sprintf("%d updated", s.Updated))
	case OpImportRatings:
		parts = append(parts, fmt.Sprintf("%d applied", s.Applied))
	case OpDeleteMany:
		parts = append(parts, fmt.Sprintf("%d deleted", s.Deleted))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Duplicates > 0 {
		noun := "duplicates"
		if s.Duplicates == 1 {
			noun = "duplicate"
		}
		parts = append(parts, fmt.Sprintf("%d %s", s.Duplicates, noun))
	}
	return strings.Join(parts, ", ")
}

// fail records n failed rows and keeps the error message while under the cap.
func (s *Summary) fail(n int, err error) {
	s.Failed += n
	if err != nil && len(s.Errors) < maxErrors {
		s.Errors = append(s.Errors, err.Error())
	}
}
