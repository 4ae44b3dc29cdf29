package nlu

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

var (
	//go:embed data/nlu.yml
	defaultTraining []byte

	//go:embed data/eval.yml
	defaultEval []byte
)

// DefaultExamples returns the embedded training set.
func DefaultExamples() ([]Example, error) {
	return LoadExamples(bytes.NewReader(defaultTraining))
}

// DefaultEvalExamples returns the embedded held-out evaluation set.
func DefaultEvalExamples() ([]Example, error) {
	return LoadEvalExamples(bytes.NewReader(defaultEval))
}

// Train loads examples from path, or the embedded set when path is empty, and
// fits a classifier with the given temperature.
func Train(path string, temperature float64) (*Classifier, []Example, error) {
	var (
		examples []Example
		err      error
	)
	if path == "" {
		examples, err = DefaultExamples()
	} else {
		examples, err = LoadExamplesFile(path)
	}
	if err != nil {
		return nil, nil, err
	}

	clf := NewClassifier(temperature)
	if err := clf.Fit(examples); err != nil {
		return nil, nil, fmt.Errorf("train intent classifier: %w", err)
	}
	return clf, examples, nil
}

// Predictor is anything that maps text to an intent.
type Predictor interface {
	Predict(text string) (domain.Intent, float64, error)
}

// IntentScore holds per-intent precision, recall and F1.
type IntentScore struct {
	Intent    domain.Intent `json:"intent"`
	Precision float64       `json:"precision"`
	Recall    float64       `json:"recall"`
	F1        float64       `json:"f1"`
	Support   int           `json:"support"`
}

// Prediction is one evaluated example.
type Prediction struct {
	Text       string        `json:"text"`
	Expected   domain.Intent `json:"expected"`
	Predicted  domain.Intent `json:"predicted"`
	Confidence float64       `json:"confidence"`
}

// Correct reports whether the prediction matched the label.
func (p Prediction) Correct() bool { return p.Expected == p.Predicted }

// Report summarizes an evaluation run.
type Report struct {
	Total       int                                     `json:"total"`
	Accuracy    float64                                 `json:"accuracy"`
	PerIntent   []IntentScore                           `json:"per_intent"`
	Confusion   map[domain.Intent]map[domain.Intent]int `json:"confusion"`
	Predictions []Prediction                            `json:"predictions"`
}

// Misses returns the incorrect predictions.
func (r Report) Misses() []Prediction {
	var out []Prediction
	for _, p := range r.Predictions {
		if !p.Correct() {
			out = append(out, p)
		}
	}
	return out
}

// Evaluate runs every example through p and scores the predictions.
func Evaluate(p Predictor, examples []Example) (Report, error) {
	report := Report{
		Total:     len(examples),
		Confusion: make(map[domain.Intent]map[domain.Intent]int),
	}
	if len(examples) == 0 {
		return report, nil
	}

	tp := make(map[domain.Intent]int)
	predicted := make(map[domain.Intent]int)
	support := make(map[domain.Intent]int)
	correct := 0

	for _, ex := range examples {
		intent, conf, err := p.Predict(ex.Text)
		if err != nil {
			return Report{}, fmt.Errorf("predict %q: %w", ex.Text, err)
		}
		report.Predictions = append(report.Predictions, Prediction{
			Text:       ex.Text,
			Expected:   ex.Intent,
			Predicted:  intent,
			Confidence: conf,
		})

		if report.Confusion[ex.Intent] == nil {
			report.Confusion[ex.Intent] = make(map[domain.Intent]int)
		}
		report.Confusion[ex.Intent][intent]++
		support[ex.Intent]++
		predicted[intent]++
		if intent == ex.Intent {
			tp[intent]++
			correct++
		}
	}

	report.Accuracy = float64(correct) / float64(len(examples))

	seen := make(map[domain.Intent]bool)
	for intent := range support {
		seen[intent] = true
	}
	for intent := range predicted {
		seen[intent] = true
	}
	intents := make([]domain.Intent, 0, len(seen))
	for intent := range seen {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	for _, intent := range intents {
		s := IntentScore{
			Intent:    intent,
			Precision: ratio(tp[intent], predicted[intent]),
			Recall:    ratio(tp[intent], support[intent]),
			Support:   support[intent],
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		report.PerIntent = append(report.PerIntent, s)
	}
	return report, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
