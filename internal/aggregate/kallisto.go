package aggregate

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Kallisto abundance column names.
const (
	colTargetID  = "target_id"
	colEstCounts = "est_counts"
)

// ReadAbundanceTSV reads a kallisto-style abundance table (tab-delimited,
// with target_id and est_counts columns) for one sample. Gzipped files are
// detected by the .gz suffix.
func ReadAbundanceTSV(sample, path string) (SampleCounts, error) {
	f, err := os.Open(path)
	if err != nil {
		return SampleCounts{}, fmt.Errorf("open abundance file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return SampleCounts{}, fmt.Errorf("open gzip abundance file: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return SampleCounts{}, fmt.Errorf("read abundance header: %w", err)
		}
		return SampleCounts{}, fmt.Errorf("abundance file %s is empty", path)
	}

	header := strings.Split(sc.Text(), "\t")
	idCol, countCol := -1, -1
	for i, name := range header {
		switch name {
		case colTargetID:
			idCol = i
		case colEstCounts:
			countCol = i
		}
	}
	if idCol < 0 || countCol < 0 {
		return SampleCounts{}, fmt.Errorf("abundance file %s: missing %s or %s column",
			path, colTargetID, colEstCounts)
	}

	out := SampleCounts{Sample: sample}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) <= idCol || len(fields) <= countCol {
			return SampleCounts{}, fmt.Errorf("abundance file %s line %d: too few columns", path, line)
		}
		v, err := strconv.ParseFloat(fields[countCol], 64)
		if err != nil {
			return SampleCounts{}, fmt.Errorf("abundance file %s line %d: bad count %q", path, line, fields[countCol])
		}
		out.Transcripts = append(out.Transcripts, TranscriptCount{
			Accession: fields[idCol],
			Count:     v,
		})
	}
	if err := sc.Err(); err != nil {
		return SampleCounts{}, fmt.Errorf("read abundance file: %w", err)
	}

	return out, nil
}

// ReadTx2Gene reads a two-column tab-delimited transcript-to-gene map.
// Extra columns beyond the second are appended to the gene key separated
// by a space, forming a composite identifier (e.g. "ENSG00000141510 TP53").
func ReadTx2Gene(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tx2gene file: %w", err)
	}
	defer f.Close()

	t2g := make(map[string]string)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("tx2gene file %s line %d: want at least 2 columns", path, line)
		}
		t2g[fields[0]] = strings.Join(fields[1:], " ")
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tx2gene file: %w", err)
	}

	return t2g, nil
}
