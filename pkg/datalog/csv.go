package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/yvesf/mercury-gw/pkg/telemetry"
)

var (
	instantHeader = []string{"Date", "Time", "Voltage", "Current", "Power"}
	tariffHeader  = []string{"Date", "Time", "Tariff1", "Tariff2"}
)

// CSVSink appends rows to semicolon separated files below Dir:
//
//	YYYYMM/YYYYMMDD_dat.csv  instant values
//	YYYYMM/YYYYMMDD_tar.csv  tariffs of the day
//	YYYY_tar.csv             tariffs of the year
type CSVSink struct {
	Dir string

	mkdirErrors atomic.Uint32
	fileErrors  atomic.Uint32
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

// Errors returns the number of failed directory creations and failed file
// writes so far.
func (s *CSVSink) Errors() (mkdir, file uint32) {
	return s.mkdirErrors.Load(), s.fileErrors.Load()
}

func (s *CSVSink) WriteInstant(at time.Time, v telemetry.Instant) error {
	dir, err := s.monthDir(at)
	if err != nil {
		return err
	}
	return s.appendRow(filepath.Join(dir, at.Format("20060102")+"_dat.csv"), instantHeader, []string{
		at.Format("02.01.2006"),
		at.Format("15:04:05"),
		strconv.FormatFloat(float64(v.Voltage)/10, 'f', 1, 64),
		strconv.FormatFloat(float64(v.Current)/100, 'f', 2, 64),
		strconv.FormatUint(uint64(v.Power), 10),
	})
}

func (s *CSVSink) WriteTariffs(at time.Time, v telemetry.Tariffs) error {
	row := []string{
		at.Format("02.01.2006"),
		at.Format("15:04:05"),
		strconv.FormatUint(uint64(v.Day), 10),
		strconv.FormatUint(uint64(v.Night), 10),
	}

	var errs []error
	dir, err := s.monthDir(at)
	if err == nil {
		err = s.appendRow(filepath.Join(dir, at.Format("20060102")+"_tar.csv"), tariffHeader, row)
	}
	errs = append(errs, err)
	errs = append(errs, s.appendRow(filepath.Join(s.Dir, at.Format("2006")+"_tar.csv"), tariffHeader, row))
	return errors.Join(errs...)
}

func (s *CSVSink) monthDir(at time.Time) (string, error) {
	dir := filepath.Join(s.Dir, at.Format("200601"))
	if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		s.mkdirErrors.Add(1)
		return "", fmt.Errorf("create log dir: %w", err)
	}
	return dir, nil
}

// appendRow writes header first when the file is new or empty.
func (s *CSVSink) appendRow(path string, header, row []string) (err error) {
	defer func() {
		if err != nil {
			s.fileErrors.Add(1)
		}
	}()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	w.UseCRLF = true
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
