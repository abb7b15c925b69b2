package listmode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrBadPosition is returned when a saved position index is unknown
var ErrBadPosition = errors.New("listmode: no such saved position")

// Columns of a coincidence CSV file, in any order. Column names are
// case-insensitive.
var columns = []string{
	"eventID1", "eventID2",
	"crystalID1", "crystalID2",
	"submoduleID1", "submoduleID2",
	"moduleID1", "moduleID2",
	"rsectorID1", "rsectorID2",
	"time1", "time2",
	"energy1", "energy2",
	"comptonPhantom1", "comptonPhantom2",
}

// SavedPosition indexes the list of positions kept by a Stream
type SavedPosition int

// Stream is an in-memory coincidence list with a read cursor
type Stream struct {
	records   []Record
	current   int
	positions []int
}

// NewStream wraps already decoded records
func NewStream(records []Record) *Stream {
	return &Stream{records: records}
}

// OpenCSV reads a coincidence CSV file
func OpenCSV(path string) (*Stream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list-mode file: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV decodes a coincidence CSV with a header row
func ReadCSV(r io.Reader) (*Stream, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read list-mode CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("list-mode CSV has no header row")
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make([]int, len(columns))
	for i, name := range columns {
		c, ok := index[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("list-mode CSV is missing column %q", name)
		}
		cols[i] = c
	}

	out := make([]Record, 0, len(records)-1)
	for i, row := range records[1:] {
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return NewStream(out), nil
}

func parseRow(row []string, cols []int) (Record, error) {
	ints := make([]int, 0, 12)
	floats := make([]float64, 0, 4)
	for i, c := range cols {
		field := strings.TrimSpace(row[c])
		name := columns[i]
		if strings.HasPrefix(name, "time") || strings.HasPrefix(name, "energy") {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Record{}, fmt.Errorf("invalid %s: %v", name, err)
			}
			floats = append(floats, v)
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s: %v", name, err)
		}
		ints = append(ints, v)
	}

	// ints: event, crystal, submodule, module, rsector, compton (pairs)
	// floats: time, energy (pairs)
	return Record{
		First: Single{
			EventID: ints[0], CrystalID: ints[2], SubmoduleID: ints[4],
			ModuleID: ints[6], RSectorID: ints[8],
			Time: floats[0], Energy: floats[2], ComptonPhantom: ints[10],
		},
		Second: Single{
			EventID: ints[1], CrystalID: ints[3], SubmoduleID: ints[5],
			ModuleID: ints[7], RSectorID: ints[9],
			Time: floats[1], Energy: floats[3], ComptonPhantom: ints[11],
		},
	}, nil
}

// WriteCSV writes records in the format ReadCSV expects
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		a, b := r.First, r.Second
		row := []string{
			strconv.Itoa(a.EventID), strconv.Itoa(b.EventID),
			strconv.Itoa(a.CrystalID), strconv.Itoa(b.CrystalID),
			strconv.Itoa(a.SubmoduleID), strconv.Itoa(b.SubmoduleID),
			strconv.Itoa(a.ModuleID), strconv.Itoa(b.ModuleID),
			strconv.Itoa(a.RSectorID), strconv.Itoa(b.RSectorID),
			strconv.FormatFloat(a.Time, 'g', -1, 64), strconv.FormatFloat(b.Time, 'g', -1, 64),
			strconv.FormatFloat(a.Energy, 'g', -1, 64), strconv.FormatFloat(b.Energy, 'g', -1, 64),
			strconv.Itoa(a.ComptonPhantom), strconv.Itoa(b.ComptonPhantom),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Next returns the next record, or io.EOF after the last one
func (s *Stream) Next() (Record, error) {
	if s.current >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.current]
	s.current++
	return r, nil
}

// NextAccepted skips records rejected by f
func (s *Stream) NextAccepted(f Filter) (Record, error) {
	for {
		r, err := s.Next()
		if err != nil || f.Accept(r) {
			return r, err
		}
	}
}

// Reset moves the cursor back to the first record
func (s *Stream) Reset() {
	s.current = 0
}

// SavePosition remembers the cursor and returns a handle to it
func (s *Stream) SavePosition() SavedPosition {
	s.positions = append(s.positions, s.current)
	return SavedPosition(len(s.positions) - 1)
}

// SetPosition moves the cursor to a saved position
func (s *Stream) SetPosition(p SavedPosition) error {
	if p < 0 || int(p) >= len(s.positions) {
		return fmt.Errorf("%w: %d", ErrBadPosition, p)
	}
	s.current = s.positions[p]
	return nil
}

// SavedPositions returns a copy of the saved cursor positions
func (s *Stream) SavedPositions() []int {
	return append([]int(nil), s.positions...)
}

// SetSavedPositions replaces the saved cursor positions
func (s *Stream) SetSavedPositions(positions []int) {
	s.positions = append([]int(nil), positions...)
}

// TotalEvents is the number of records in the stream
func (s *Stream) TotalEvents() int {
	return len(s.records)
}

// Records returns the records without moving the cursor
func (s *Stream) Records() []Record {
	return s.records
}
