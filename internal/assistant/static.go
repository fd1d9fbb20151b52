package assistant

import (
	"context"
	"strings"
)

type keywordReply struct {
	keyword string
	reply   string
}

// Matched in order against the lower-cased message; the first contained
// keyword wins.
var staticReplies = []keywordReply{
	{"hello", "Hello! I'm your DoseWise Assistant. How can I help you with your medications today?"},
	{"hi", "Hi there! 👋 I can help you with pill identification, medication schedules, and health questions. What would you like to know?"},
	{"what is this pill", "To identify a pill, please go to the **Scan Pill** page and use your camera. I can help you understand the results once you scan it!"},
	{"when should i take medicine", "Check your **Adherence** page for today's schedule. Generally, take medications at the same time each day. Set reminders in the app to stay on track! ⏰"},
	{"side effects", "Side effects vary by medication. Always read the label and consult your doctor. If you experience severe side effects, seek medical attention immediately. 🏥"},
	{"missed dose", "If you missed a dose, take it as soon as you remember unless it's close to your next dose. Never double up without checking with your pharmacist. 💊"},
	{"interaction", "Drug interactions can be serious. Check the **My Meds** page — we automatically flag known interactions. Always inform your doctor about all medications you take."},
	{"reminder", "You can set up reminders in the app! Go to **My Meds**, set your schedule times, and we'll send browser notifications when it's time to take your meds. 🔔"},
}

// HelpText is the static reply when no keyword matches.
const HelpText = "I'm here to help with medication questions! You can ask me about:\n• Pill identification\n• Medication schedules\n• Side effects\n• Drug interactions\n• Missed doses\n• Setting reminders"

// Static answers from a fixed keyword table.
type Static struct{}

func (Static) Reply(_ context.Context, message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, kr := range staticReplies {
		if strings.Contains(lower, kr.keyword) {
			return kr.reply
		}
	}
	return HelpText
}
