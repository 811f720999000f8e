// Package importer reads bank statement CSV exports into account transactions.
//
// A file is recognised by its header row. Rows already present in the target
// account, according to the import provenance stored on each transaction, are
// skipped so the same statement can be imported more than once.
package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetbook/internal/core"
)

type Format string

const (
	FormatCredit      Format = "credit"
	FormatDebit       Format = "debit"
	FormatLegacyDebit Format = "legacy_debit"
)

const (
	creditHeader      = "Type,Trans Date,Post Date,Description,Amount"
	debitHeader       = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #"
	legacyDebitHeader = "Type,Post Date,Description,Amount,Check or Slip #"

	recordDateLayout = "01/02/2006"
)

var (
	ErrUnknownFormat = errors.New("file contents do not match any known format")
	ErrEmptyFile     = errors.New("empty file")
)

var (
	creditTypes = map[string]bool{"SALE": true, "PAYMENT": true, "FEE": true}
	debitTypes  = map[string]bool{"DEBIT": true, "CREDIT": true, "CHECK": true, "DSLIP": true}
)

// Record is one statement row.
type Record struct {
	Line            int
	Format          Format
	Type            string
	TransactionDate *core.Date
	PostDate        core.Date
	Description     string
	Amount          decimal.Decimal
	CheckOrSlipNo   *int
}

// RowError describes a row that could not be read.
type RowError struct {
	Line int
	Row  string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v (%s)", e.Line, e.Err, e.Row)
}

func (e RowError) Unwrap() error { return e.Err }

// ParseError collects every bad row of a file. A file with bad rows imports
// nothing.
type ParseError struct {
	Format Format
	Rows   []RowError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		msgs[i] = r.Error()
	}
	return fmt.Sprintf("%s statement has %d invalid rows:\n- %s", e.Format, len(e.Rows), strings.Join(msgs, "\n- "))
}

// DetectFormat identifies a statement by its header row.
func DetectFormat(header string) (Format, error) {
	header = strings.TrimPrefix(header, "\ufeff")
	header = strings.TrimRight(header, "\r\n")
	switch header {
	case creditHeader:
		return FormatCredit, nil
	case debitHeader:
		return FormatDebit, nil
	case legacyDebitHeader:
		return FormatLegacyDebit, nil
	}
	return "", ErrUnknownFormat
}

// Parse reads a whole statement.
func Parse(r io.Reader) (Format, []Record, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimSpace(header) == "" {
		return "", nil, ErrEmptyFile
	}
	format, err := DetectFormat(header)
	if err != nil {
		return "", nil, err
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		records []Record
		bad     []RowError
	)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				bad = append(bad, RowError{Line: perr.Line + 1, Err: perr.Err})
				continue
			}
			return format, nil, fmt.Errorf("read statement: %w", err)
		}
		line, _ := reader.FieldPos(0)
		line++ // header
		if isBlank(fields) {
			continue
		}
		rec, err := parseRow(format, fields)
		if err != nil {
			bad = append(bad, RowError{Line: line, Row: strings.Join(fields, ","), Err: err})
			continue
		}
		rec.Line = line
		records = append(records, rec)
	}
	if len(bad) > 0 {
		return format, nil, &ParseError{Format: format, Rows: bad}
	}
	return format, records, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(format Format, f []string) (Record, error) {
	rec := Record{Format: format}
	var err error
	switch format {
	case FormatCredit:
		if len(f) < 5 {
			return rec, fmt.Errorf("expected 5 fields, got %d", len(f))
		}
		if rec.Type, err = recordType(f[0], creditTypes); err != nil {
			return rec, err
		}
		td, err := parseRecordDate(f[1])
		if err != nil {
			return rec, err
		}
		rec.TransactionDate = &td
		if rec.PostDate, err = parseRecordDate(f[2]); err != nil {
			return rec, err
		}
		rec.Description = cleanDescription(f[3])
		if rec.Amount, err = core.ParseAmount(f[4]); err != nil {
			return rec, err
		}
	case FormatDebit:
		if len(f) < 7 {
			return rec, fmt.Errorf("expected 7 fields, got %d", len(f))
		}
		rec.Type = strings.TrimSpace(f[4])
		if rec.Type == "" {
			rec.Type = strings.ToUpper(strings.TrimSpace(f[0]))
		}
		if rec.PostDate, err = parseRecordDate(f[1]); err != nil {
			return rec, err
		}
		rec.Description = cleanDescription(f[2])
		if rec.Amount, err = core.ParseAmount(f[3]); err != nil {
			return rec, err
		}
		if rec.CheckOrSlipNo, err = parseCheckNo(f[6]); err != nil {
			return rec, err
		}
	case FormatLegacyDebit:
		if len(f) < 5 {
			return rec, fmt.Errorf("expected 5 fields, got %d", len(f))
		}
		if rec.Type, err = recordType(f[0], debitTypes); err != nil {
			return rec, err
		}
		if rec.PostDate, err = parseRecordDate(f[1]); err != nil {
			return rec, err
		}
		rec.Description = cleanDescription(f[2])
		if rec.Amount, err = core.ParseAmount(f[3]); err != nil {
			return rec, err
		}
		if rec.CheckOrSlipNo, err = parseCheckNo(f[4]); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func recordType(s string, allowed map[string]bool) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if !allowed[t] {
		return "", fmt.Errorf("unknown record type %q", s)
	}
	return t, nil
}

func parseRecordDate(s string) (core.Date, error) {
	t, err := time.Parse(recordDateLayout, strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return core.Date{Time: t}, nil
}

func parseCheckNo(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid check or slip number %q", s)
	}
	return &n, nil
}

func cleanDescription(s string) string {
	return strings.Trim(s, " \"")
}
