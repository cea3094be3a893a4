package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// TextfileCollector exposes metrics written by other processes as *.prom
// files in the text exposition format. Files are re-read on every scrape.
type TextfileCollector struct {
	dir string
}

// NewTextfileCollector reads *.prom files from dir.
func NewTextfileCollector(dir string) *TextfileCollector {
	return &TextfileCollector{dir: dir}
}

// Collect parses files in name order. A missing directory contributes
// nothing; a file that fails to parse fails the scrape.
func (c *TextfileCollector) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading textfile directory %s: %w", c.dir, err)
	}

	var out []*dto.MetricFamily
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".prom" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fams, err := parseTextfile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, fams...)
	}

	return out, nil
}

func parseTextfile(path string) ([]*dto.MetricFamily, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening textfile %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	parser := expfmt.NewTextParser(model.UTF8Validation)
	byName, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return nil, fmt.Errorf("parsing textfile %s: %w", filepath.Base(path), err)
	}

	out := make([]*dto.MetricFamily, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		out = append(out, byName[name])
	}
	return out, nil
}
