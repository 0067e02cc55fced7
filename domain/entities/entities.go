package entities

// Topic represents a conversation practice topic
type Topic string

const (
	TopicDailyLife Topic = "daily-life"
	TopicWork      Topic = "work"
	TopicTravel    Topic = "travel"
	TopicFood      Topic = "food"
	TopicHobbies   Topic = "hobbies"
	TopicRandom    Topic = "random"
)

// Topics returns the fixed set of selectable topics in display order
func Topics() []Topic {
	return []Topic{
		TopicDailyLife,
		TopicWork,
		TopicTravel,
		TopicFood,
		TopicHobbies,
		TopicRandom,
	}
}

// ParseTopic resolves a raw string to a known topic
func ParseTopic(raw string) (Topic, bool) {
	topic := Topic(raw)
	for _, t := range Topics() {
		if t == topic {
			return topic, true
		}
	}
	return "", false
}

// Difficulty tags a conversation with the learner's level
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleSystem MessageRole = "system"
)
