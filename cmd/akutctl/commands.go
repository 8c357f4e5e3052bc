package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/okian/akut/internal/adapters/catalog"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scenario"
	"github.com/okian/akut/internal/domain/scoring"
	"github.com/okian/akut/internal/domain/timeline"
)

var (
	errLintFailed = errors.New("lint found errors")
	errNoCase     = errors.New("case not found in file")
)

func addCommands(p *flags.Parser, opts *options, out io.Writer) {
	commands := []struct {
		name, short, long string
		data              any
	}{
		{"evaluate", "Grade a timeline against a case",
			"Merges the optional device events into the timeline, grades it and prints the evaluation as JSON.",
			&evaluateCommand{opts: opts, out: out}},
		{"lint", "Check case documents",
			"Prints the lint report of every case in the file as JSON. Exits with 1 when any case has errors.",
			&lintCommand{out: out}},
		{"graph", "Render a case's state machine",
			"Prints the narrative state machine of a case in Graphviz DOT.",
			&graphCommand{out: out}},
		{"schema", "Print the scenario JSON Schema", "",
			&schemaCommand{out: out}},
	}
	for _, c := range commands {
		if _, err := p.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}
}

type CaseFile struct {
	Case string `short:"c" long:"case" required:"true" description:"case file (.json, .yaml or .yml)"`
	ID   string `long:"id" description:"case id when the file holds several cases (default: first)"`
}

// load returns the raw document selected by ID.
func (a CaseFile) load() (map[string]any, error) {
	docs, err := readCases(a.Case)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if a.ID == "" || model.String(doc["id"]) == a.ID {
			return doc, nil
		}
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: %s holds no cases", errNoCase, a.Case)
	}
	return nil, fmt.Errorf("%w: %q in %s", errNoCase, a.ID, a.Case)
}

func readCases(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.Parse(path, data)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type evaluateCommand struct {
	CaseFile
	Timeline string `short:"t" long:"timeline" required:"true" description:"JSON array of action log entries"`
	Events   string `short:"e" long:"events" description:"JSON array of device events"`

	opts *options
	out  io.Writer
}

func (c *evaluateCommand) Execute(_ []string) error {
	doc, err := c.load()
	if err != nil {
		return err
	}
	var local []model.ActionLogEntry
	if err := readJSON(c.Timeline, &local); err != nil {
		return err
	}
	var remote []model.SessionEvent
	if c.Events != "" {
		if err := readJSON(c.Events, &remote); err != nil {
			return err
		}
	}

	g := scoring.NewGrader(nil, scoring.WithMerger(timeline.NewMerger(timeline.WithActionMap(c.opts.ActionMap))))
	ev := g.Evaluate(context.Background(), scoring.OriginSync, model.DecodeScenario(doc), local, remote)
	return writeJSON(c.out, ev)
}

type lintReport struct {
	CaseID    string           `json:"caseId"`
	HasErrors bool             `json:"hasErrors"`
	Issues    []scenario.Issue `json:"issues"`
}

type lintCommand struct {
	Case string `short:"c" long:"case" required:"true" description:"case file (.json, .yaml or .yml)"`

	out io.Writer
}

func (c *lintCommand) Execute(_ []string) error {
	docs, err := readCases(c.Case)
	if err != nil {
		return err
	}
	reports := make([]lintReport, 0, len(docs))
	failed := false
	for _, doc := range docs {
		issues := scenario.Lint(doc)
		r := lintReport{CaseID: model.String(doc["id"]), HasErrors: scenario.HasErrors(issues), Issues: issues}
		failed = failed || r.HasErrors
		reports = append(reports, r)
	}
	if err := writeJSON(c.out, reports); err != nil {
		return err
	}
	if failed {
		return errLintFailed
	}
	return nil
}

type graphCommand struct {
	CaseFile

	out io.Writer
}

func (c *graphCommand) Execute(_ []string) error {
	doc, err := c.load()
	if err != nil {
		return err
	}
	dot, err := scenario.Graph(model.DecodeScenario(doc))
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.out, dot)
	return err
}

type schemaCommand struct {
	out io.Writer
}

func (c *schemaCommand) Execute(_ []string) error {
	b, err := scenario.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "%s\n", b)
	return err
}
