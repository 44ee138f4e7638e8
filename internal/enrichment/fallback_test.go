package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leannotes/contracts/lu"
	"leannotes/internal/model"
)

func TestFallback_MeetingScenario(t *testing.T) {
	a := NewFallback().Analyze("Meeting with Sarah about Q4 deadline tomorrow", nil)

	assert.True(t, a.Emotion.Valid())
	assert.Contains(t, a.Themes, model.ThemeWork)
	require.NotEmpty(t, a.People)
	assert.Equal(t, "Sarah", a.People[0].Name)
	assert.Equal(t, model.UrgencyMedium, a.Urgency)
	assert.Equal(t, model.MethodFallback, a.Method)
}

func TestFallback_AlwaysComplete(t *testing.T) {
	a := NewFallback().Analyze("nice walk", nil)

	assert.Equal(t, model.EmotionNeutral, a.Emotion)
	assert.Equal(t, model.UrgencyNone, a.Urgency)
	assert.NotNil(t, a.Themes)
	assert.NotNil(t, a.People)
	assert.NotNil(t, a.Actions)
	for _, field := range []string{
		model.FieldEmotion, model.FieldThemes, model.FieldPeople, model.FieldUrgency,
		model.FieldActions, model.FieldQuestions, model.FieldDecisions,
	} {
		assert.Contains(t, a.Confidence, field)
	}
	assert.Equal(t, fallbackDefault, a.Confidence[model.FieldEmotion])
}

func TestExtractActions(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"need to call john about the project", []string{"call john about the project"}},
		{"todo: fix css bug and review PR", []string{"fix css bug", "review PR"}},
		{"must fix the broken test cases tomorrow", []string{"fix the broken test cases tomorrow"}},
		{"have to update documentation before release", []string{"update documentation before release"}},
		{"feeling tired today #work", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, extractActions(tt.text))
		})
	}
}

func TestExtractQuestionsAndDecisions(t *testing.T) {
	questions := extractQuestions("Should I take the job? I wonder if it pays well.")
	assert.Equal(t, []string{"Should I take the job?", "I wonder if it pays well"}, questions)

	assert.Equal(t, []string{"Decided to take the new role"}, extractDecisions("Decided to take the new role."))
	assert.Empty(t, extractDecisions("long day"))
}

func TestExtractEvents(t *testing.T) {
	got := extractEvents("Slept 7.5 hours and ran 5 km before lunch")
	require.Len(t, got, 3)

	assert.Equal(t, model.EventSleep, got[0].Category)
	assert.Equal(t, 7.5, got[0].Metrics["hours"])

	assert.Equal(t, model.EventExercise, got[1].Category)
	assert.Equal(t, "run", got[1].Subtype)
	assert.Equal(t, 5.0, got[1].Metrics["distance_km"])

	assert.Equal(t, model.EventMeal, got[2].Category)
	assert.Equal(t, "lunch", got[2].Subtype)

	for _, c := range got {
		assert.Equal(t, model.MethodFallback, c.Method)
	}
}

func TestExtractEvents_UnitsAndSpending(t *testing.T) {
	miles := extractEvents("walked 3 miles")
	require.Len(t, miles, 1)
	assert.Equal(t, "walk", miles[0].Subtype)
	assert.Equal(t, 4.83, miles[0].Metrics["distance_km"])

	spend := extractEvents("spent $12.50 on coffee")
	require.Len(t, spend, 1)
	assert.Equal(t, model.EventSpending, spend[0].Category)
	assert.Equal(t, 12.5, spend[0].Metrics["amount"])
	assert.Equal(t, "coffee", spend[0].TextMetrics["item"])

	gym := extractEvents("went to the gym")
	require.Len(t, gym, 1)
	assert.Equal(t, "gym", gym[0].Phrase)
	assert.Equal(t, keywordEventConfidence, gym[0].Confidence)
}

func TestFallback_People(t *testing.T) {
	f := NewFallback()

	t.Run("fuzzy known names", func(t *testing.T) {
		for _, text := range []string{"lunch with kerer", "lunch with kere", "lunch with kerem"} {
			people := f.Analyze(text, []string{"Kerem"}).People
			require.Len(t, people, 1, text)
			assert.Equal(t, "Kerem", people[0].Name)
		}
		assert.Empty(t, f.Analyze("lunch with karen", []string{"Kerem"}).People)
	})

	t.Run("capitalized words not starting a sentence", func(t *testing.T) {
		people := f.Analyze("Sarah called. Then Tom texted about Monday", nil).People
		require.Len(t, people, 1)
		assert.Equal(t, "Tom", people[0].Name)
	})

	t.Run("acronyms are not people", func(t *testing.T) {
		assert.Empty(t, f.Analyze("fixed the CSS for the PR", nil).People)
	})

	t.Run("sentiment from the sentence", func(t *testing.T) {
		people := f.Analyze("Had a great day with Tom. Work was hectic.", nil).People
		require.Len(t, people, 1)
		assert.Equal(t, model.SentimentPositive, people[0].Sentiment)
		assert.Equal(t, "Had a great day with Tom.", people[0].Context)
	})
}

func TestFallback_Urgency(t *testing.T) {
	f := NewFallback()
	assert.Equal(t, model.UrgencyHigh, f.Analyze("urgent: call the bank", nil).Urgency)
	assert.Equal(t, model.UrgencyLow, f.Analyze("fix the sink someday", nil).Urgency)
	assert.Equal(t, model.UrgencyLow, f.Analyze("need to buy milk", nil).Urgency)
	assert.Equal(t, model.UrgencyNone, f.Analyze("nice walk", nil).Urgency)
}

func TestValidate(t *testing.T) {
	fb := NewFallback().Analyze("need to review the sprint board", nil)

	t.Run("valid response is llm", func(t *testing.T) {
		a := Validate(&lu.AnalyzeResponse{
			Emotion:    "Focused",
			Themes:     []string{"Work", "work", "gardening", "health", "fitness", "travel"},
			People:     []lu.Person{{Name: " Ana ", Sentiment: "ecstatic"}},
			Urgency:    "low",
			Actions:    []string{"review the sprint board", ""},
			Questions:  []string{},
			Decisions:  []string{},
			Confidence: map[string]float64{model.FieldEmotion: 1.4},
		}, fb)

		assert.Equal(t, model.MethodLLM, a.Method)
		assert.Equal(t, model.EmotionFocused, a.Emotion)
		assert.Equal(t, []model.Theme{model.ThemeWork, model.ThemeHealth, model.ThemeFitness}, a.Themes)
		assert.Equal(t, []model.Person{{Name: "Ana", Sentiment: model.SentimentNeutral}}, a.People)
		assert.Equal(t, []string{"review the sprint board"}, a.Actions)
		assert.Equal(t, 1.0, a.Confidence[model.FieldEmotion])
		assert.Equal(t, llmDefault, a.Confidence[model.FieldUrgency])
	})

	t.Run("invalid fields take fallback values", func(t *testing.T) {
		a := Validate(&lu.AnalyzeResponse{
			Emotion: "ecstatic",
			Themes:  []string{"gardening"},
			People:  []lu.Person{},
			Urgency: "whenever",
		}, fb)

		assert.Equal(t, model.MethodMixed, a.Method)
		assert.Equal(t, fb.Emotion, a.Emotion)
		assert.Equal(t, fb.Themes, a.Themes)
		assert.Equal(t, fb.Urgency, a.Urgency)
		assert.Equal(t, fb.Actions, a.Actions)
		assert.Equal(t, fb.Confidence[model.FieldEmotion], a.Confidence[model.FieldEmotion])
	})

	t.Run("unknown event types are dropped", func(t *testing.T) {
		a := Validate(&lu.AnalyzeResponse{
			CandidateEvents: []lu.CandidateEvent{
				{Type: "dance", Confidence: 0.9},
				{Type: "Sleep", Subtype: "duration", Confidence: 1.2},
			},
		}, fb)

		require.Len(t, a.Events, 1)
		assert.Equal(t, model.EventSleep, a.Events[0].Category)
		assert.Equal(t, 1.0, a.Events[0].Confidence)
		assert.Equal(t, model.MethodLLM, a.Events[0].Method)
	})
}

func TestCategorizeFact(t *testing.T) {
	tests := map[string]model.FactCategory{
		"I work at Acme":                model.FactWork,
		"My manager is Sarah":           model.FactPeople,
		"I live in Berlin":              model.FactLocation,
		"My daughter's name is Nandini": model.FactFamily,
		"I'm allergic to peanuts":       model.FactHealth,
		"I prefer tea over coffee":      model.FactPreference,
		"The sky is blue":               model.FactGeneral,
	}
	for fact, want := range tests {
		assert.Equal(t, want, CategorizeFact(fact), fact)
	}
}

func TestKnownNames(t *testing.T) {
	facts := []*model.UserFact{
		{Fact: "My manager is Sarah", Active: true},
		{Fact: "My daughter's name is nandini", Active: true},
		{Fact: "My friend is Omar", Active: false},
	}
	assert.Equal(t, []string{"Sarah", "Nandini"}, KnownNames(facts))
}

func TestBuildContext(t *testing.T) {
	at := time.Date(2025, 5, 13, 9, 0, 0, 0, time.Local) // Tuesday
	facts := []*model.UserFact{{Fact: "I work at Acme", Active: true}}

	assert.Equal(t, "Time: Tuesday morning", BuildContext(at, facts, nil, 5))

	full := BuildContext(at, facts, []string{"Sarah: mostly anxious"}, 100)
	assert.Equal(t, "Time: Tuesday morning\nFact: I work at Acme\nPattern: Sarah: mostly anxious", full)
}
