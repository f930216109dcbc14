// Package generators provides event log fixtures for tests.
package generators

import (
	"encoding/csv"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/logflow/logview/internal/model"
)

// Base is the timestamp fixture offsets are relative to.
var Base = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// Step is one event of a fixture case.
type Step struct {
	Activity string
	At       time.Duration // offset from Base
	Resource string
	Attrs    []model.Attribute
}

// At builds a step at an offset from Base. Attrs are key, value pairs.
func At(activity string, offset time.Duration, attrs ...string) Step {
	s := Step{Activity: activity, At: offset}
	for i := 0; i+1 < len(attrs); i += 2 {
		s.Attrs = append(s.Attrs, model.Attribute{Key: attrs[i], Value: attrs[i+1], Type: model.InferAttrType(attrs[i+1])})
	}
	return s
}

// Case is a fixture case: an identifier and its steps in row order.
type Case struct {
	ID    string
	Steps []Step
}

// NewCase builds a case.
func NewCase(id string, steps ...Step) Case {
	return Case{ID: id, Steps: steps}
}

// Events flattens cases into rows, case by case.
func Events(cases ...Case) []model.Event {
	var out []model.Event
	for _, c := range cases {
		for _, s := range c.Steps {
			out = append(out, model.Event{
				CaseID:     c.ID,
				Activity:   s.Activity,
				Timestamp:  Base.Add(s.At).UnixNano(),
				Resource:   s.Resource,
				Attributes: append([]model.Attribute(nil), s.Attrs...),
			})
		}
	}
	return out
}

// LogGenerator generates random event logs.
type LogGenerator struct {
	rng *rand.Rand

	Activities []string
	Resources  []string
	MinEvents  int
	MaxEvents  int

	// MaxAmount bounds the numeric "amount" attribute; 0 disables it.
	MaxAmount float64
}

// NewLogGenerator creates a generator with order-to-cash style defaults.
func NewLogGenerator(seed int64) *LogGenerator {
	return &LogGenerator{
		rng: rand.New(rand.NewSource(seed)),
		Activities: []string{
			"Submit Order", "Approve Order", "Process Payment",
			"Ship Order", "Deliver Order", "Close Order",
		},
		Resources: []string{"Alice", "Bob", "Charlie", "Diana", "Eve"},
		MinEvents: 2,
		MaxEvents: 6,
		MaxAmount: 1000,
	}
}

// Generate returns n cases of random events. Events of a case are one hour
// apart and cases start one day apart.
func (g *LogGenerator) Generate(n int) []model.Event {
	var out []model.Event
	for c := 0; c < n; c++ {
		id := "case-" + strconv.Itoa(c+1)
		start := Base.Add(time.Duration(c) * 24 * time.Hour)
		events := g.MinEvents + g.rng.Intn(g.MaxEvents-g.MinEvents+1)
		for e := 0; e < events; e++ {
			ev := model.Event{
				CaseID:    id,
				Activity:  g.Activities[g.rng.Intn(len(g.Activities))],
				Timestamp: start.Add(time.Duration(e) * time.Hour).UnixNano(),
				Resource:  g.Resources[g.rng.Intn(len(g.Resources))],
			}
			if g.MaxAmount > 0 {
				v := strconv.FormatFloat(g.rng.Float64()*g.MaxAmount, 'f', 2, 64)
				ev.Attributes = []model.Attribute{{Key: "amount", Value: v, Type: model.AttrTypeFloat}}
			}
			out = append(out, ev)
		}
	}
	return out
}

// WriteCSV writes events under the given column names. Standard columns
// resolve to the event fields; timestamps are written as RFC 3339.
func WriteCSV(w io.Writer, events []model.Event, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for i := range events {
		for j, col := range columns {
			v, _ := events[i].Value(col)
			row[j] = v
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
