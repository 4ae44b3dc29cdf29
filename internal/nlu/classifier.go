package nlu

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// DefaultTemperature sharpens predicted probabilities; values above 1 smooth them.
const DefaultTemperature = 0.75

const (
	maxNGram  = 3
	smoothing = 1.0
)

// ErrNotTrained is returned by Predict before Fit has succeeded.
var ErrNotTrained = errors.New("model not trained: call Fit first")

var (
	nonWordRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// Example is one labeled utterance.
type Example struct {
	Text   string        `yaml:"text"`
	Intent domain.Intent `yaml:"intent"`
}

// Classifier is a multinomial naive Bayes model over word 1- to 3-grams with
// uniform class priors. It is safe for concurrent Predict calls once trained.
type Classifier struct {
	temperature float64
	classes     []domain.Intent
	logLik      map[domain.Intent]map[string]float64
	logUnseen   map[domain.Intent]float64
	vocab       map[string]bool
}

// NewClassifier creates an untrained classifier. temperature is clamped to a
// small positive minimum; zero means DefaultTemperature.
func NewClassifier(temperature float64) *Classifier {
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &Classifier{temperature: max(temperature, 1e-3)}
}

// Normalize lowercases text, replaces non-alphanumerics with spaces, and
// collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// Fit trains the model, replacing any previous training.
func (c *Classifier) Fit(examples []Example) error {
	if len(examples) == 0 {
		return errors.New("fit: no examples")
	}

	counts := make(map[domain.Intent]map[string]float64)
	totals := make(map[domain.Intent]float64)
	vocab := make(map[string]bool)
	for _, ex := range examples {
		if ex.Intent == "" {
			return fmt.Errorf("fit: example %q has no intent", ex.Text)
		}
		if counts[ex.Intent] == nil {
			counts[ex.Intent] = make(map[string]float64)
		}
		for _, f := range features(ex.Text) {
			counts[ex.Intent][f]++
			totals[ex.Intent]++
			vocab[f] = true
		}
	}

	classes := make([]domain.Intent, 0, len(counts))
	logLik := make(map[domain.Intent]map[string]float64, len(counts))
	logUnseen := make(map[domain.Intent]float64, len(counts))
	v := float64(len(vocab))
	for intent, fc := range counts {
		classes = append(classes, intent)
		denom := totals[intent] + smoothing*v
		ll := make(map[string]float64, len(fc))
		for f, n := range fc {
			ll[f] = math.Log((n + smoothing) / denom)
		}
		logLik[intent] = ll
		logUnseen[intent] = math.Log(smoothing / denom)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	c.classes, c.logLik, c.logUnseen, c.vocab = classes, logLik, logUnseen, vocab
	return nil
}

// Classes returns the trained intents in sorted order.
func (c *Classifier) Classes() []domain.Intent {
	return append([]domain.Intent(nil), c.classes...)
}

// Predict returns the most probable intent and its temperature-scaled
// probability. Text with no known n-grams is fallback at uniform confidence.
func (c *Classifier) Predict(text string) (domain.Intent, float64, error) {
	if len(c.classes) == 0 {
		return "", 0, ErrNotTrained
	}
	probs := c.probabilities(text)
	if probs == nil {
		return domain.IntentFallback, 1 / float64(len(c.classes)), nil
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return c.classes[best], probs[best], nil
}

func (c *Classifier) probabilities(text string) []float64 {
	var known []string
	for _, f := range features(text) {
		if c.vocab[f] {
			known = append(known, f)
		}
	}
	if len(known) == 0 {
		return nil
	}

	scores := make([]float64, len(c.classes))
	for i, intent := range c.classes {
		ll := c.logLik[intent]
		for _, f := range known {
			if v, ok := ll[f]; ok {
				scores[i] += v
			} else {
				scores[i] += c.logUnseen[intent]
			}
		}
	}
	probs := softmax(scores, 1)

	if c.temperature != 1 {
		for i, p := range probs {
			scores[i] = math.Log(math.Max(p, 1e-9))
		}
		probs = softmax(scores, c.temperature)
	}
	return probs
}

func softmax(scores []float64, temperature float64) []float64 {
	peak := math.Inf(-1)
	for _, s := range scores {
		peak = math.Max(peak, s/temperature)
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s/temperature - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func features(text string) []string {
	tokens := strings.Fields(Normalize(text))
	var out []string
	for n := 1; n <= maxNGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// LoadExamples reads training data of the form
//
//	intents:
//	  greet:
//	    - hello
func LoadExamples(r io.Reader) ([]Example, error) {
	var doc struct {
		Intents map[domain.Intent][]string `yaml:"intents"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode training data: %w", err)
	}

	intents := make([]domain.Intent, 0, len(doc.Intents))
	for intent := range doc.Intents {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	var examples []Example
	for _, intent := range intents {
		for _, text := range doc.Intents[intent] {
			examples = append(examples, Example{Text: Normalize(text), Intent: intent})
		}
	}
	return examples, nil
}

// LoadEvalExamples reads evaluation data of the form
//
//	examples:
//	  - text: hello
//	    intent: greet
func LoadEvalExamples(r io.Reader) ([]Example, error) {
	var doc struct {
		Examples []Example `yaml:"examples"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode eval data: %w", err)
	}
	return doc.Examples, nil
}

// LoadExamplesFile reads training data from path.
func LoadExamplesFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()
	return LoadExamples(f)
}

// LoadEvalExamplesFile reads evaluation data from path.
func LoadEvalExamplesFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open eval data: %w", err)
	}
	defer f.Close()
	return LoadEvalExamples(f)
}
