package scraper

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadWorklist reads case ids from a plain-text file, one per line. Lines may
// be comma-delimited; only the first field is used. Blank lines are skipped.
func LoadWorklist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open worklist: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		field, _, _ := strings.Cut(sc.Text(), ",")
		id := strings.TrimSpace(field)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read worklist: %w", err)
	}
	return ids, nil
}
