package telegram

import (
	"fmt"
	"strings"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
)

// User-facing strings. The first three are part of the external
// contract and must not be reworded.
const (
	PrivacyNotice     = "Privacy notice: We only retain anonymised aggregates and purge inline photos within 24 hours."
	UsageGuidePointer = "View the inline usage guide in quickstart.md for manual verification steps."
	PhotoLimitWarning = "⚠️ Maximum 5 photos allowed per meal. You can upload up to 5 photos in one message for better calorie estimation."

	AnalyzingPlaceholder   = "🔍 Analyzing your meal photo..."
	InlineResultTitle      = "Analyze meal photo"
	GenericFailureMessage  = "⚠️ Sorry, I couldn't analyze your meal photo. Please try again."
	NoPermissionDM         = "I couldn't reply in that chat because I don't have permission to post there. Ask a chat admin to grant me posting rights, or send your meal photos to me directly."
	StartMessage           = "👋 Send me a photo of your meal and I'll estimate its calories and macronutrients. You can send up to 5 photos of the same meal in one message."
	HelpMessage            = "📖 How to use me:\n• Send a meal photo (up to 5 in one message) and I'll estimate calories.\n• Add a caption to describe the meal for a better estimate.\n• In groups, reply to a photo and mention me to analyze it.\n• Use /goals in the mini-app to set a daily calorie target."
	UnknownMessageReply    = "Send me a meal photo to get a calorie estimate, or /help for usage."
	InlinePlaceholderIntro = "⏳ Preparing your meal analysis. The result will arrive in this chat shortly."
)

// InlinePrivatePlaceholder is the acknowledgement body for private-chat
// inline queries: processing note plus the verbatim privacy notice and
// usage-guide pointer.
func InlinePrivatePlaceholder() string {
	return InlinePlaceholderIntro + "\n\n" + PrivacyNotice + "\n" + UsageGuidePointer
}

// FormatEstimate renders the result message delivered after a meal
// estimate, in Telegram Markdown.
func FormatEstimate(est *models.Estimate, items []vision.FoodItem, photoCount int) string {
	var b strings.Builder

	b.WriteString("🍽 *Meal estimate*")
	if photoCount > 1 {
		fmt.Fprintf(&b, " (%d photos)", photoCount)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "🔥 *Calories:* %.0f kcal (%.0f–%.0f)\n", est.KcalMean, est.KcalMin, est.KcalMax)
	fmt.Fprintf(&b, "🥩 Protein: %.0f g  🍞 Carbs: %.0f g  🧈 Fat: %.0f g\n", est.Protein, est.Carbs, est.Fats)
	fmt.Fprintf(&b, "🎯 Confidence: %.0f%%\n", est.Confidence*100)

	if len(items) > 0 {
		b.WriteString("\n*Items:*\n")
		for _, it := range items {
			fmt.Fprintf(&b, "• %s", it.Label)
			if it.Portion != "" {
				fmt.Fprintf(&b, " (%s)", it.Portion)
			}
			fmt.Fprintf(&b, " — %.0f kcal\n", it.Kcal)
		}
	}

	b.WriteString("\n✅ Saved to your meal log.")
	return b.String()
}

// FormatInlineResult renders the shorter summary used for inline
// deliveries, where no meal record is created.
func FormatInlineResult(res *vision.Result) string {
	var b strings.Builder

	b.WriteString("🍽 *Meal estimate*\n\n")
	fmt.Fprintf(&b, "🔥 *Calories:* %.0f kcal (%.0f–%.0f)\n", res.KcalMean, res.KcalMin, res.KcalMax)
	fmt.Fprintf(&b, "🥩 Protein: %.0f g  🍞 Carbs: %.0f g  🧈 Fat: %.0f g\n", res.Protein, res.Carbs, res.Fats)
	fmt.Fprintf(&b, "🎯 Confidence: %.0f%%", res.Confidence*100)

	if len(res.Items) > 0 {
		b.WriteString("\n\n*Items:*\n")
		for _, it := range res.Items {
			fmt.Fprintf(&b, "• %s — %.0f kcal\n", it.Label, it.Kcal)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
