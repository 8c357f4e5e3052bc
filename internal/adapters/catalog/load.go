package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/gjson"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

// LoadStats summarises a Load call.
type LoadStats struct {
	Files    int
	Loaded   int
	Rejected int
}

// Load reads every file under dir that matches the catalog pattern. Files
// are parsed in parallel and added in path order, so the first file wins on
// duplicate ids. Bad files and rejected documents are logged and skipped;
// only a bad pattern, an unreadable dir or a cancelled ctx fail the call.
func (c *Catalog) Load(ctx context.Context, dir string) (LoadStats, error) {
	return c.LoadFS(ctx, os.DirFS(dir))
}

// LoadFS is Load over an arbitrary file system.
func (c *Catalog) LoadFS(ctx context.Context, fsys fs.FS) (LoadStats, error) {
	var stats LoadStats

	matches, err := doublestar.Glob(fsys, c.pattern)
	if err != nil {
		return stats, fmt.Errorf("glob %q: %w", c.pattern, err)
	}
	sort.Strings(matches)
	stats.Files = len(matches)

	parsed := make([][]map[string]any, len(matches))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.concurrency)
	for i, name := range matches {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := readFile(fsys, name)
			if err != nil {
				c.log.Warn(ctx, "skipping case file", logger.String("file", name), logger.Error(err))
				metrics.RecordErrorByComponent("catalog", "parse")
				return nil
			}
			parsed[i] = docs
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return stats, fmt.Errorf("load cases: %w", err)
	}

	for i, docs := range parsed {
		for _, doc := range docs {
			issues, err := c.Add(doc)
			if err != nil {
				stats.Rejected++
				c.log.Warn(ctx, "case rejected",
					logger.String("file", matches[i]),
					logger.String("case_id", model.String(doc["id"])),
					logger.Error(err))
				continue
			}
			stats.Loaded++
			for _, is := range issues {
				c.log.Debug(ctx, "case lint warning",
					logger.String("file", matches[i]),
					logger.String("case_id", model.String(doc["id"])),
					logger.String("issue", is.String()))
			}
		}
	}

	c.log.Info(ctx, "case catalog loaded",
		logger.Int("files", stats.Files),
		logger.Int("loaded", stats.Loaded),
		logger.Int("rejected", stats.Rejected))
	return stats, nil
}

func readFile(fsys fs.FS, name string) ([]map[string]any, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return Parse(name, data)
}

// Parse picks the decoder from the file extension of name.
func Parse(name string, data []byte) ([]map[string]any, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}

// ParseJSON returns the scenario documents in a JSON file holding either one
// object or an array of objects. Non-object array items are skipped.
func ParseJSON(data []byte) ([]map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", model.ErrInvalidDocument)
	}

	root := gjson.ParseBytes(data)
	switch {
	case root.IsObject():
		doc, err := model.DecodeDocumentJSON(data)
		if err != nil {
			return nil, err
		}
		return []map[string]any{doc}, nil
	case root.IsArray():
		var (
			docs     []map[string]any
			firstErr error
		)
		root.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				return true
			}
			doc, err := model.DecodeDocumentJSON([]byte(item.Raw))
			if err != nil {
				firstErr = err
				return false
			}
			docs = append(docs, doc)
			return true
		})
		return docs, firstErr
	}
	return nil, fmt.Errorf("%w: expected an object or an array", ErrUnsupportedFile)
}

// ParseYAML returns the scenario documents in a YAML file: either a mapping
// with a cases list, or a single case mapping.
func ParseYAML(data []byte) ([]map[string]any, error) {
	m, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDocument, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrUnsupportedFile)
	}

	raw, ok := m["cases"]
	if !ok {
		return []map[string]any{m}, nil
	}
	var docs []map[string]any
	for _, item := range model.List(raw) {
		if doc, ok := model.Map(item); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
