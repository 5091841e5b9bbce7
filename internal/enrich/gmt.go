package enrich

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

// ReadGMT reads gene sets in GMT format: one set per line, tab-delimited,
// with the set name first, a description second and member genes after.
// Sets with fewer than minSetSize unique members are dropped at load time.
func ReadGMT(path string, minSetSize int) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gmt file: %w", err)
	}
	defer f.Close()

	sets := make(map[string][]string)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("gmt file %s line %d: want name, description and members", path, line)
		}
		name := fields[0]
		if name == "" {
			return nil, fmt.Errorf("gmt file %s line %d: empty set name", path, line)
		}
		members := lo.Uniq(lo.Filter(fields[2:], func(g string, _ int) bool { return g != "" }))
		if len(members) < minSetSize {
			continue
		}
		sets[name] = members
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read gmt file: %w", err)
	}

	return sets, nil
}
