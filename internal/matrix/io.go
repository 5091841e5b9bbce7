package matrix

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCountMatrixTSV reads a tab-delimited count table: first column gene
// identifiers (header "Geneid" or similar), remaining columns one sample
// each. Gzipped files are detected by their .gz suffix. Cells must parse
// as non-negative integers; anything else is a MalformedInputError.
func ReadCountMatrixTSV(path string) (*CountMatrix, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read count table header: %w", err)
		}
		return nil, malformedf("count table %s is empty", path)
	}
	header := strings.Split(sc.Text(), "\t")
	if len(header) < 2 {
		return nil, malformedf("count table header has %d columns, want at least 2", len(header))
	}
	samples := header[1:]

	var genes []string
	var counts []int64
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(header) {
			return nil, malformedf("count table line %d has %d columns, want %d", line, len(fields), len(header))
		}
		genes = append(genes, fields[0])
		for _, f := range fields[1:] {
			v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return nil, malformedf("count table line %d: non-integer cell %q", line, f)
			}
			counts = append(counts, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read count table: %w", err)
	}

	return NewCountMatrix(genes, samples, counts)
}

// ReadSampleSheet reads a sample sheet from a tab-delimited file or, when
// the path ends in .xlsx, from the first sheet of an Excel workbook. The
// first column holds sample identifiers; every other column is a binary
// group indicator.
func ReadSampleSheet(path string) (*SampleSheet, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return readSampleSheetXLSX(path)
	}
	return readSampleSheetTSV(path)
}

func readSampleSheetTSV(path string) (*SampleSheet, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var rows [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		rows = append(rows, strings.Split(sc.Text(), "\t"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sample sheet: %w", err)
	}
	return sheetFromRows(path, rows)
}

func readSampleSheetXLSX(path string) (*SampleSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open sample sheet workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformedf("sample sheet workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sample sheet workbook: %w", err)
	}
	return sheetFromRows(path, rows)
}

func sheetFromRows(path string, rows [][]string) (*SampleSheet, error) {
	if len(rows) < 2 {
		return nil, malformedf("sample sheet %s has no data rows", path)
	}
	header := rows[0]
	if len(header) < 2 {
		return nil, malformedf("sample sheet %s has no indicator columns", path)
	}

	samples := make([]string, 0, len(rows)-1)
	indicators := make(map[string][]int, len(header)-1)
	for _, name := range header[1:] {
		indicators[name] = make([]int, 0, len(rows)-1)
	}

	for n, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		samples = append(samples, strings.TrimSpace(row[0]))
		for k, name := range header[1:] {
			cell := ""
			if k+1 < len(row) {
				cell = strings.TrimSpace(row[k+1])
			}
			v, err := strconv.Atoi(cell)
			if err != nil {
				return nil, malformedf("sample sheet row %d: indicator %q cell %q is not an integer",
					n+2, name, cell)
			}
			indicators[name] = append(indicators[name], v)
		}
	}

	return NewSampleSheet(samples, indicators)
}

func openMaybeGzip(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, f.Close, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	closeFn := func() error {
		gz.Close()
		return f.Close()
	}
	return gz, closeFn, nil
}
