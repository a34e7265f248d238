package service

import (
	"regexp"
	"strings"

	"github.com/livercare-risk-server/internal/domain"
)

// ChatTopic names the entry of the dispatch table that answered a message
type ChatTopic string

const (
	TopicGreetings   ChatTopic = "greetings"
	TopicSymptoms    ChatTopic = "symptoms"
	TopicRiskFactors ChatTopic = "riskFactors"
	TopicPrevention  ChatTopic = "prevention"
	TopicTestResults ChatTopic = "testResults"
	TopicAlcohol     ChatTopic = "alcohol"
	TopicDiet        ChatTopic = "diet"
	TopicExercise    ChatTopic = "exercise"
	TopicGeneral     ChatTopic = "general"
	TopicDefault     ChatTopic = "default"
)

// ChatReply is the assistant's answer to one message
type ChatReply struct {
	Topic   ChatTopic `json:"topic"`
	Message string    `json:"message"`
}

type chatRoute struct {
	topic   ChatTopic
	pattern *regexp.Regexp
	pool    []string
}

// Chatbot answers liver health questions from keyword-matched reply pools.
// Routes are tried in order and the first match wins.
type Chatbot struct {
	routes      []chatRoute
	defaultPool []string
	noise       NoiseSource
}

// NewChatbot creates a chatbot picking replies with source.
func NewChatbot(source NoiseSource) *Chatbot {
	if source == nil {
		source = NewNoiseSource(0)
	}
	return &Chatbot{
		routes:      chatRoutes,
		defaultPool: defaultReplies,
		noise:       source,
	}
}

// Reply answers message. Blank messages are rejected.
func (c *Chatbot) Reply(message string) (*ChatReply, error) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return nil, domain.NewValidationError("message", "Message is required", message)
	}

	for _, route := range c.routes {
		if route.pattern.MatchString(text) {
			return &ChatReply{Topic: route.topic, Message: c.pick(route.pool)}, nil
		}
	}
	return &ChatReply{Topic: TopicDefault, Message: c.pick(c.defaultPool)}, nil
}

// Topics lists the topics in match order, ending with the default.
func (c *Chatbot) Topics() []ChatTopic {
	topics := make([]ChatTopic, 0, len(c.routes)+1)
	for _, r := range c.routes {
		topics = append(topics, r.topic)
	}
	return append(topics, TopicDefault)
}

func (c *Chatbot) pick(pool []string) string {
	if len(pool) == 1 {
		return pool[0]
	}
	i := int(c.noise.Float64() * float64(len(pool)))
	if i >= len(pool) {
		i = len(pool) - 1
	}
	return pool[i]
}

func keywords(words string) *regexp.Regexp {
	return regexp.MustCompile(`\b(` + words + `)\b`)
}

var chatRoutes = []chatRoute{
	{
		topic:   TopicGreetings,
		pattern: keywords(`hi|hello|hey|greetings|good morning|good afternoon|good evening`),
		pool: []string{
			"Hello! How can I help you today?",
			"Hi there! I'm here to answer your questions about liver health.",
			"Welcome! Feel free to ask me anything about liver disease.",
		},
	},
	{
		topic:   TopicSymptoms,
		pattern: keywords(`symptom|sign|indication|feel|pain|ache|tired|fatigue|jaundice|yellow|nausea|vomit`),
		pool: []string{
			"Common symptoms of liver disease include: fatigue, jaundice (yellowing of skin and eyes), abdominal pain, swelling in legs and ankles, dark urine, pale stool, nausea, loss of appetite, and easy bruising. However, many liver diseases show no symptoms in early stages, which is why regular screening is important.",
			"Liver disease symptoms can vary but often include: yellowing of the skin (jaundice), abdominal pain and swelling, chronic fatigue, nausea or vomiting, dark urine, pale-colored stool, and loss of appetite. If you experience any of these, consult a healthcare professional.",
		},
	},
	{
		topic:   TopicRiskFactors,
		pattern: keywords(`risk|factor|cause|why|what causes|what leads to|preventable|avoid`),
		pool: []string{
			"Key risk factors for liver disease include: excessive alcohol consumption, obesity, type 2 diabetes, viral hepatitis (Hepatitis B or C), family history of liver disease, certain medications, exposure to toxins, and metabolic syndrome. Maintaining a healthy lifestyle can help reduce many of these risks.",
			"Common risk factors include: heavy alcohol use, being overweight or obese, having diabetes, smoking, family history of liver problems, exposure to hepatitis viruses, and certain genetic conditions. Regular exercise and a balanced diet can help mitigate some risks.",
		},
	},
	{
		topic:   TopicPrevention,
		pattern: keywords(`prevent|prevention|avoid|reduce|lower|protect|healthy|diet|exercise|lifestyle`),
		pool: []string{
			"To prevent liver disease: limit alcohol consumption, maintain a healthy weight, eat a balanced diet rich in fruits and vegetables, exercise regularly, avoid smoking, get vaccinated for Hepatitis A and B, practice safe sex, avoid sharing needles, and be cautious with medications and supplements. Regular health checkups are also important.",
			"Prevention strategies include: drinking alcohol in moderation or not at all, maintaining a healthy BMI, eating a nutritious diet, staying physically active, avoiding illicit drugs, getting proper vaccinations, and following your doctor's advice regarding medications. Early detection through screening is also crucial.",
		},
	},
	{
		topic:   TopicTestResults,
		pattern: keywords(`test|result|alt|ast|bilirubin|liver function|blood test|lab|diagnosis|normal|abnormal|elevated|high|low`),
		pool: []string{
			"Liver function tests (LFTs) measure enzymes and proteins in your blood. Elevated ALT/AST levels may indicate liver damage. Normal ranges vary, but typically ALT is 7-56 IU/L and AST is 10-40 IU/L for men. Higher values suggest liver stress or damage. Always discuss results with your healthcare provider for proper interpretation.",
			"Liver function test results should be interpreted by a healthcare professional. Generally, elevated levels of ALT, AST, or bilirubin may indicate liver problems. The specific values and their significance depend on your overall health, medical history, and other factors. Don't self-diagnose based on test results alone.",
		},
	},
	{
		topic:   TopicAlcohol,
		pattern: keywords(`alcohol|drink|drinking|beer|wine|spirit|liquor`),
		pool: []string{
			"Excessive alcohol consumption is a major risk factor for liver disease. The liver can process moderate amounts of alcohol, but heavy or chronic drinking can lead to alcoholic fatty liver disease, hepatitis, or cirrhosis. It's recommended to limit alcohol intake or avoid it altogether for optimal liver health.",
		},
	},
	{
		topic:   TopicDiet,
		pattern: keywords(`diet|food|eat|nutrition|meal|healthy eating|what to eat`),
		pool: []string{
			"A liver-friendly diet includes: plenty of fruits and vegetables, whole grains, lean proteins, and healthy fats. Limit processed foods, saturated fats, and added sugars. Foods like coffee, green tea, berries, and fatty fish may be particularly beneficial for liver health.",
		},
	},
	{
		topic:   TopicExercise,
		pattern: keywords(`exercise|workout|physical activity|fitness|gym|sport`),
		pool: []string{
			"Regular physical activity helps maintain a healthy weight and reduces the risk of fatty liver disease. Aim for at least 150 minutes of moderate-intensity exercise per week, such as brisk walking, cycling, or swimming.",
		},
	},
	{
		topic:   TopicGeneral,
		pattern: keywords(`liver|hepatic|organ|function|health`),
		pool: []string{
			"The liver is a vital organ that processes nutrients, filters toxins, and produces bile. Keeping it healthy is essential for overall well-being.",
			"Liver disease can be caused by various factors including viruses, alcohol use, obesity, and genetics. Early detection and treatment are key to better outcomes.",
			"If you're concerned about your liver health, consult with a healthcare professional. They can order appropriate tests and provide personalized advice.",
		},
	},
}

var defaultReplies = []string{
	"I understand your concern. For specific medical advice, please consult with a healthcare professional. I can provide general information about liver health, symptoms, risk factors, and prevention. What would you like to know?",
	"That's a good question. While I can provide general information about liver health, for personalized medical advice, it's best to consult with a healthcare provider. Is there something specific about liver disease you'd like to learn more about?",
}
