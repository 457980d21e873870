package bot

import (
	"fmt"
	"strings"

	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
)

// maxReplyRunes is the LINE text message length limit applied to outbound
// replies.
const maxReplyRunes = 1000

// formatNutrition renders a resolved record plus the advice sentence into
// the reply text.
func formatNutrition(rec nutrition.Record, advice string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (預估)\n", rec.Name)
	fmt.Fprintf(&sb, "熱量 %.1f kcal\n", rec.Calories)
	fmt.Fprintf(&sb, "蛋白質 %.1f g；脂肪 %.1f g；碳水 %.1f g", rec.Protein, rec.Fat, rec.Carbs)
	if advice != "" {
		sb.WriteString("\n")
		sb.WriteString(advice)
	}
	return sb.String()
}

func truncateReply(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyRunes {
		return text
	}
	return string(runes[:maxReplyRunes])
}

func fallbackApology() string {
	return "抱歉，暫時無法回覆，請稍後再試～"
}
