package model

// Closed vocabularies accepted at the enrichment boundary.

type Emotion string

const (
	EmotionHappy      Emotion = "happy"
	EmotionExcited    Emotion = "excited"
	EmotionGrateful   Emotion = "grateful"
	EmotionCalm       Emotion = "calm"
	EmotionFocused    Emotion = "focused"
	EmotionNeutral    Emotion = "neutral"
	EmotionTired      Emotion = "tired"
	EmotionAnxious    Emotion = "anxious"
	EmotionStressed   Emotion = "stressed"
	EmotionFrustrated Emotion = "frustrated"
	EmotionSad        Emotion = "sad"
	EmotionAngry      Emotion = "angry"
)

var Emotions = []Emotion{
	EmotionHappy, EmotionExcited, EmotionGrateful, EmotionCalm, EmotionFocused, EmotionNeutral,
	EmotionTired, EmotionAnxious, EmotionStressed, EmotionFrustrated, EmotionSad, EmotionAngry,
}

type Theme string

const (
	ThemeWork          Theme = "work"
	ThemeHealth        Theme = "health"
	ThemeFitness       Theme = "fitness"
	ThemeFamily        Theme = "family"
	ThemeRelationships Theme = "relationships"
	ThemeFinance       Theme = "finance"
	ThemeLearning      Theme = "learning"
	ThemeCreativity    Theme = "creativity"
	ThemeTravel        Theme = "travel"
	ThemeHome          Theme = "home"
	ThemeSocial        Theme = "social"
	ThemePersonal      Theme = "personal"
)

var Themes = []Theme{
	ThemeWork, ThemeHealth, ThemeFitness, ThemeFamily, ThemeRelationships, ThemeFinance,
	ThemeLearning, ThemeCreativity, ThemeTravel, ThemeHome, ThemeSocial, ThemePersonal,
}

// MaxThemes is the most themes an enrichment record carries.
const MaxThemes = 3

type Urgency string

const (
	UrgencyNone   Urgency = "none"
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

var Urgencies = []Urgency{UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

type EventCategory string

const (
	EventSleep    EventCategory = "sleep"
	EventExercise EventCategory = "exercise"
	EventSpending EventCategory = "spending"
	EventMeal     EventCategory = "meal"
	EventWork     EventCategory = "work"
	EventSocial   EventCategory = "social"
	EventHealth   EventCategory = "health"
	EventOther    EventCategory = "other"
)

var EventCategories = []EventCategory{
	EventSleep, EventExercise, EventSpending, EventMeal, EventWork, EventSocial, EventHealth, EventOther,
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (e Emotion) Valid() bool       { return contains(Emotions, e) }
func (t Theme) Valid() bool         { return contains(Themes, t) }
func (u Urgency) Valid() bool       { return contains(Urgencies, u) }
func (s Sentiment) Valid() bool     { return contains(Sentiments, s) }
func (c EventCategory) Valid() bool { return contains(EventCategories, c) }
