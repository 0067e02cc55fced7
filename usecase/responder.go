package usecase

import (
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/entities"
)

// topicGreetings holds one fixed opening line per topic
var topicGreetings = map[entities.Topic]string{
	entities.TopicDailyLife: "Let's talk about daily life! What does a typical day look like for you?",
	entities.TopicWork:      "Let's talk about work! What do you do for a living?",
	entities.TopicTravel:    "Let's talk about travel! Have you visited any interesting places recently?",
	entities.TopicFood:      "Let's talk about food! What is your favorite dish?",
	entities.TopicHobbies:   "Let's talk about hobbies! What do you enjoy doing in your free time?",
	entities.TopicRandom:    "Let's have a chat! Tell me about something that made you smile recently.",
}

const genericGreeting = "Hello! I'm your English practice partner. What would you like to talk about today?"

// topicReplies are the scripted follow-up pools per topic
var topicReplies = map[entities.Topic][]string{
	entities.TopicDailyLife: {
		"That sounds like a busy day. What part of your routine do you enjoy most?",
		"Interesting! Do you usually wake up early or late?",
		"I see. How do you like to relax after a long day?",
		"Nice! Is there anything you would change about your daily routine?",
	},
	entities.TopicWork: {
		"That sounds interesting. What do you like most about your job?",
		"I see. What is the most challenging part of your work?",
		"Nice! How did you get started in that field?",
		"Do you prefer working alone or with a team?",
	},
	entities.TopicTravel: {
		"That sounds like a wonderful trip. What was the highlight?",
		"Interesting! Do you prefer beaches or mountains?",
		"I see. Where would you like to travel next?",
		"Nice! Do you usually plan your trips or travel spontaneously?",
	},
	entities.TopicFood: {
		"That sounds delicious! Do you cook it yourself or eat it at restaurants?",
		"Interesting! What food from another country would you like to try?",
		"I see. Do you enjoy cooking at home?",
		"Nice! What did you have for breakfast today?",
	},
	entities.TopicHobbies: {
		"That sounds fun! How long have you been doing that?",
		"Interesting! How did you first get into it?",
		"I see. Do you do it alone or with friends?",
		"Nice! What new hobby would you like to try?",
	},
}

// genericReplies serve the random topic and any unknown topic
var genericReplies = []string{
	"That's interesting! Can you tell me more about that?",
	"I see. How does that make you feel?",
	"Nice! What happened next?",
	"Really? Why do you think that is?",
	"That sounds great. What else is on your mind?",
}

const (
	questionAcknowledgment = "That's a good question! "
	elaborationPrompt      = "Try to say a little more next time. "
)

// ResponseService selects scripted replies for the active topic. The random
// pool index is the only non-deterministic element; pick is injectable for
// tests.
type ResponseService struct {
	logger *zap.Logger
	pick   func(n int) int
}

// NewResponseService creates a response service. A nil pick falls back to a
// uniform pseudorandom index.
func NewResponseService(logger *zap.Logger, pick func(n int) int) *ResponseService {
	if pick == nil {
		pick = rand.Intn
	}
	return &ResponseService{logger: logger, pick: pick}
}

// Greet returns the fixed opening line for a topic, or a generic greeting
// for an unknown topic
func (s *ResponseService) Greet(topic entities.Topic) string {
	if greeting, ok := topicGreetings[topic]; ok {
		return greeting
	}
	s.logger.Warn("Unknown topic, using generic greeting", zap.String("topic", string(topic)))
	return genericGreeting
}

// Respond selects a reply from the topic pool. A question from the user is
// acknowledged; a very short utterance gets an elaboration prompt.
func (s *ResponseService) Respond(topic entities.Topic, userText string) string {
	pool, ok := topicReplies[topic]
	if !ok {
		pool = genericReplies
	}

	reply := pool[s.pick(len(pool))]

	if strings.Contains(userText, "?") {
		return questionAcknowledgment + reply
	}
	if len(strings.Fields(userText)) < 5 {
		return elaborationPrompt + reply
	}
	return reply
}
