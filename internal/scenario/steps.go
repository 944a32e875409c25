package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/surveydriver/internal/executor"
	"github.com/v0xg/surveydriver/internal/locate"
)

// StepKind is the vote a step casts on a row
type StepKind string

const (
	Abstain StepKind = "abstain"
	Vote    StepKind = "vote"
	Add     StepKind = "add"
)

// cellOf maps each kind to the cell and tag that carry it
var cellOf = map[StepKind]struct {
	cell, tag string
	action    executor.ActionType
}{
	Abstain: {"nocell", "input", executor.Click},
	Vote:    {"proposedcell", "input", executor.Click},
	Add:     {"addcell", "button", executor.TypeAndSubmit},
}

// Step is one vote on one row
type Step struct {
	Kind  StepKind `yaml:"kind"`
	Row   string   `yaml:"row"`
	Value string   `yaml:"value,omitempty"`
}

func (s Step) String() string {
	if s.Kind == Add {
		return fmt.Sprintf("%s(%s,%q)", s.Kind, s.Row, s.Value)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Row)
}

// Validate checks the kind and that add steps carry a value
func (s Step) Validate() error {
	if _, ok := cellOf[s.Kind]; !ok {
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	if strings.TrimSpace(s.Row) == "" {
		return fmt.Errorf("%s step without row", s.Kind)
	}
	if s.Kind == Add && s.Value == "" {
		return fmt.Errorf("add step on row %s without value", s.Row)
	}
	return nil
}

// Action converts the step to an executor action
func (s Step) Action() executor.Action {
	c := cellOf[s.Kind]
	return executor.Action{
		Type:   c.action,
		Target: locate.Target{RowKey: s.Row, Cell: c.cell, Tag: c.tag},
		Text:   s.Value,
	}
}

// FastVotePlan abstains on every row, votes for the winning value on all
// but the last row, then adds value to the last row
func FastVotePlan(rows []string, value string) []Step {
	steps := make([]Step, 0, 2*len(rows))
	for _, r := range rows {
		steps = append(steps, Step{Kind: Abstain, Row: r})
	}
	for i, r := range rows {
		if i == len(rows)-1 {
			steps = append(steps, Step{Kind: Add, Row: r, Value: value})
			break
		}
		steps = append(steps, Step{Kind: Vote, Row: r})
	}
	return steps
}

type plan struct {
	Steps []Step `yaml:"steps"`
}

// ParseSteps decodes a YAML step list of the form
//
//	steps:
//	  - {kind: abstain, row: f3d4397b739b287}
//	  - {kind: add, row: 7d1d3cbd260601a4, value: Testxyz}
func ParseSteps(data []byte) ([]Step, error) {
	var p plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, errors.New("steps must be non-empty")
	}
	for i, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return p.Steps, nil
}

// LoadSteps reads a YAML step list from path
func LoadSteps(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	return ParseSteps(data)
}
