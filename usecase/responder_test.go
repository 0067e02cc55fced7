package usecase

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/entities"
)

func fixedPick(index int) func(int) int {
	return func(n int) int {
		if index >= n {
			return n - 1
		}
		return index
	}
}

func TestGreet(t *testing.T) {
	service := NewResponseService(zap.NewNop(), nil)

	for _, topic := range entities.Topics() {
		greeting := service.Greet(topic)
		if greeting == "" {
			t.Errorf("Expected a greeting for topic %s", topic)
		}
		if greeting == genericGreeting {
			t.Errorf("Known topic %s should not use the generic greeting", topic)
		}
	}
}

func TestGreetUnknownTopic(t *testing.T) {
	service := NewResponseService(zap.NewNop(), nil)
	if got := service.Greet("politics"); got != genericGreeting {
		t.Errorf("Unknown topic should fall back to the generic greeting, got %q", got)
	}
}

func TestRespondFromTopicPool(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(0))

	reply := service.Respond(entities.TopicFood, "I had sushi with my friends yesterday evening")
	if reply != topicReplies[entities.TopicFood][0] {
		t.Errorf("Expected the first food reply, got %q", reply)
	}
}

func TestRespondUnknownTopicUsesGenericPool(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(2))

	reply := service.Respond("politics", "I watched the news about elections this morning")
	if reply != genericReplies[2] {
		t.Errorf("Expected a generic reply, got %q", reply)
	}
}

func TestRespondRandomTopicUsesGenericPool(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(1))

	reply := service.Respond(entities.TopicRandom, "Something funny happened to me at the station")
	if reply != genericReplies[1] {
		t.Errorf("Expected a generic reply for the random topic, got %q", reply)
	}
}

func TestRespondAcknowledgesQuestion(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(0))

	reply := service.Respond(entities.TopicWork, "What do you think about remote work?")
	if !strings.HasPrefix(reply, questionAcknowledgment) {
		t.Errorf("Question should be acknowledged, got %q", reply)
	}
}

func TestRespondPromptsElaboration(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(0))

	reply := service.Respond(entities.TopicFood, "I love it")
	if !strings.HasPrefix(reply, elaborationPrompt) {
		t.Errorf("Short utterance should get an elaboration prompt, got %q", reply)
	}
}

func TestRespondQuestionWinsOverShortness(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(0))

	reply := service.Respond(entities.TopicFood, "Why?")
	if !strings.HasPrefix(reply, questionAcknowledgment) {
		t.Errorf("A short question should be acknowledged, not prompted, got %q", reply)
	}
	if strings.Contains(reply, elaborationPrompt) {
		t.Errorf("Reply should not carry both prefixes, got %q", reply)
	}
}

func TestRespondNoPrefixForFullSentence(t *testing.T) {
	service := NewResponseService(zap.NewNop(), fixedPick(3))

	reply := service.Respond(entities.TopicTravel, "Last summer I traveled across three countries by train")
	if reply != topicReplies[entities.TopicTravel][3] {
		t.Errorf("Full statement should get the bare pool reply, got %q", reply)
	}
}
