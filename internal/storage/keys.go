package storage

// Namespace prefixes every cache key written by the tutor client, so
// ClearNamespace can wipe app data without touching anything else sharing
// the database.
const Namespace = "english-tutor-"

// Cache keys. Vocabulary, topics, weak-areas, and mastered are reserved for
// collaborators outside the core pipeline; they are enumerated here but not
// written by it.
const (
	KeyMessages     = Namespace + "messages"
	KeyVocabulary   = Namespace + "vocabulary"
	KeyLevel        = Namespace + "level"
	KeyStreak       = Namespace + "streak"
	KeyLastPractice = Namespace + "last-practice"
	KeyTopics       = Namespace + "topics"
	KeyWeakAreas    = Namespace + "weak-areas"
	KeyMastered     = Namespace + "mastered"
)
