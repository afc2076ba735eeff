// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uno

import (
	"go.uber.org/zap"
)

// Statistics is a per-iteration table with registered columns, emitted
// through the structured logger one row per outer iteration.
type Statistics struct {
	logger  *zap.Logger
	columns []string
	row     map[string]any
}

// NewStatistics creates an empty table.
func NewStatistics(logger *zap.Logger) *Statistics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Statistics{logger: logger, row: map[string]any{}}
}

// AddColumn registers a column; re-registrations are ignored.
func (s *Statistics) AddColumn(name string) {
	for _, existing := range s.columns {
		if existing == name {
			return
		}
	}
	s.columns = append(s.columns, name)
}

// Set records a value for the current row.
func (s *Statistics) Set(name string, value any) {
	s.row[name] = value
}

// EmitRow logs the current row in column order and clears it.
func (s *Statistics) EmitRow() {
	fields := make([]zap.Field, 0, len(s.columns))
	for _, name := range s.columns {
		if value, ok := s.row[name]; ok {
			fields = append(fields, zap.Any(name, value))
		}
	}
	s.logger.Info("iteration", fields...)
	s.row = map[string]any{}
}
