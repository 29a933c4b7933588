package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Entity tags a log line with the owning entity id.
func Entity(id fmt.Stringer) zap.Field {
	return zap.Stringer("entity", id)
}

// Cycle tags a log line with a refresh cycle id.
func Cycle(id fmt.Stringer) zap.Field {
	return zap.Stringer("cycle", id)
}

// Mask logs a change mask.
func Mask(m fmt.Stringer) zap.Field {
	return zap.Stringer("mask", m)
}

// Rows logs a block of whole rows as {start_row, rows}.
func Rows(startRow, numRows int) zap.Field {
	return zap.Object("block", rowBlock{start: startRow, rows: numRows})
}

// Region logs a half-open vertex rectangle as {min_row, max_row, min_column, max_column}.
func Region(minRow, maxRow, minColumn, maxColumn int) zap.Field {
	return zap.Object("region", region{minRow, maxRow, minColumn, maxColumn})
}

type rowBlock struct {
	start int
	rows  int
}

func (b rowBlock) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("start_row", b.start)
	enc.AddInt("rows", b.rows)
	return nil
}

type region struct {
	minRow, maxRow       int
	minColumn, maxColumn int
}

func (r region) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("min_row", r.minRow)
	enc.AddInt("max_row", r.maxRow)
	enc.AddInt("min_column", r.minColumn)
	enc.AddInt("max_column", r.maxColumn)
	return nil
}
