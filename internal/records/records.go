// internal/records/records.go
//
// Package records reads and writes actor populations as whitespace-delimited
// "type x y name" records. Line breaks carry no meaning; the loader reads
// tokens in groups of four.
package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/kb"
)

var (
	// ErrIO wraps failures opening, reading or writing record files.
	ErrIO = errors.New("record I/O failure")
	// ErrInvalidRecord marks a record that cannot be parsed or is truncated.
	ErrInvalidRecord = errors.New("invalid record")
)

const fieldsPerRecord = 4

// Load parses every record from r and constructs the actors with f. The
// batch is all-or-nothing: the first bad record fails the whole load.
func Load(r io.Reader, f *core.Factory) ([]*core.Actor, error) {
	if f == nil {
		f = core.NewFactory()
	}

	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var (
		actors []*core.Actor
		fields [fieldsPerRecord]string
		n      int
	)
	for sc.Scan() {
		fields[n] = sc.Text()
		n++
		if n < fieldsPerRecord {
			continue
		}
		n = 0

		a, err := parseRecord(f, fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(actors)+1, err)
		}
		actors = append(actors, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if n != 0 {
		return nil, fmt.Errorf("record %d: %w: truncated after %d of %d fields",
			len(actors)+1, ErrInvalidRecord, n, fieldsPerRecord)
	}
	return actors, nil
}

func parseRecord(f *core.Factory, fields [fieldsPerRecord]string) (*core.Actor, error) {
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: x %q is not an integer", ErrInvalidRecord, fields[1])
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: y %q is not an integer", ErrInvalidRecord, fields[2])
	}
	return f.ConstructRecord(fields[0], x, y, fields[3])
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, f *core.Factory) ([]*core.Actor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()
	return Load(file, f)
}

// Save writes one record per live actor, in order, and returns how many
// were written. Dead actors are skipped.
func Save(w io.Writer, actors []*core.Actor) (int, error) {
	bw := bufio.NewWriter(w)
	written := 0
	for _, a := range actors {
		if a == nil || !a.IsAlive() {
			continue
		}
		if _, err := fmt.Fprintln(bw, a.String()); err != nil {
			return written, fmt.Errorf("%w: %v", ErrIO, err)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return written, nil
}

// SaveRegistry writes the live members of reg in registry order.
func SaveRegistry(w io.Writer, reg *kb.Registry) (int, error) {
	var live []*core.Actor
	reg.ForEachLive(func(_ kb.Handle, a *core.Actor) {
		live = append(live, a)
	})
	return Save(w, live)
}

// SaveFile truncates path and writes the live members of reg to it.
func SaveFile(path string, reg *kb.Registry) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	n, err := SaveRegistry(file, reg)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", ErrIO, cerr)
	}
	return n, err
}
