package nlu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

func trainedDefault(t *testing.T) *Classifier {
	t.Helper()
	clf, examples, err := Train("", DefaultTemperature)
	require.NoError(t, err)
	require.NotEmpty(t, examples)
	return clf
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "what s the weather in austin tx", Normalize("  What's the WEATHER in Austin, TX?! "))
	assert.Equal(t, "", Normalize("?!"))
}

func TestFeatures(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "a b", "b c", "a b c"}, features("A b, c"))
}

func TestClassifier_PredictBeforeFit(t *testing.T) {
	_, _, err := NewClassifier(0).Predict("hello")
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestClassifier_FitRejectsBadInput(t *testing.T) {
	clf := NewClassifier(0)
	require.Error(t, clf.Fit(nil))
	require.Error(t, clf.Fit([]Example{{Text: "hello"}}))
}

func TestClassifier_Predict(t *testing.T) {
	clf := trainedDefault(t)

	tests := []struct {
		text string
		want domain.Intent
	}{
		{"hello", domain.IntentGreet},
		{"what can you do?", domain.IntentHelp},
		{"current weather in Boise", domain.IntentCurrentWeather},
		{"forecast for tomorrow", domain.IntentForecast},
		{"any weather alerts for Dallas, TX?", domain.IntentAlerts},
		{"tell me a joke", domain.IntentFallback},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, conf, err := clf.Predict(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, conf, 0.0)
			assert.LessOrEqual(t, conf, 1.0)
		})
	}
}

func TestClassifier_UnknownTextIsFallback(t *testing.T) {
	clf := trainedDefault(t)

	intent, conf, err := clf.Predict("zzzz qqqq")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFallback, intent)
	assert.InDelta(t, 1/float64(len(clf.Classes())), conf, 1e-9)
}

func TestClassifier_TemperatureSharpens(t *testing.T) {
	examples, err := DefaultExamples()
	require.NoError(t, err)

	sharp := NewClassifier(0.5)
	flat := NewClassifier(2)
	require.NoError(t, sharp.Fit(examples))
	require.NoError(t, flat.Fit(examples))

	_, sharpConf, err := sharp.Predict("any alerts")
	require.NoError(t, err)
	_, flatConf, err := flat.Predict("any alerts")
	require.NoError(t, err)
	assert.Greater(t, sharpConf, flatConf)
}

func TestLoadExamples(t *testing.T) {
	src := `
intents:
  help:
    - "What can you do?"
  greet:
    - Hi
    - Hello!
`
	examples, err := LoadExamples(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []Example{
		{Text: "hi", Intent: domain.IntentGreet},
		{Text: "hello", Intent: domain.IntentGreet},
		{Text: "what can you do", Intent: domain.IntentHelp},
	}, examples)
}

func TestLoadExamples_Invalid(t *testing.T) {
	_, err := LoadExamples(strings.NewReader("intents: [unclosed"))
	assert.Error(t, err)
}

func TestLoadExamplesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nlu.yml")
	require.NoError(t, os.WriteFile(path, []byte("intents:\n  greet:\n    - hey\n"), 0o600))

	clf, examples, err := Train(path, 1)
	require.NoError(t, err)
	assert.Len(t, examples, 1)
	assert.Equal(t, []domain.Intent{domain.IntentGreet}, clf.Classes())

	_, _, err = Train(filepath.Join(t.TempDir(), "missing.yml"), 1)
	assert.Error(t, err)
}

func TestDefaultExamples_CoverEveryIntent(t *testing.T) {
	examples, err := DefaultExamples()
	require.NoError(t, err)

	seen := make(map[domain.Intent]int)
	for _, ex := range examples {
		seen[ex.Intent]++
	}
	for _, intent := range []domain.Intent{
		domain.IntentGreet, domain.IntentHelp, domain.IntentCurrentWeather,
		domain.IntentForecast, domain.IntentAlerts, domain.IntentFallback,
	} {
		assert.GreaterOrEqual(t, seen[intent], 15, intent)
	}
}
