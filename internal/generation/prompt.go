package generation

import (
	"fmt"
	"strings"

	"photo-generator/internal/models"
)

const defaultAttire = "Matching Indonesian Batik Christmas attire"

// ComposePrompt builds the instruction sent alongside the input images.
func ComposePrompt(choice ModelChoice, theme models.Theme, photoCount int, attire string) string {
	if attire == "" {
		attire = defaultAttire
	}

	var b strings.Builder
	if choice == CompositionPreserving {
		setting := theme.Name
		if setting == "" {
			setting = "themed"
		}
		fmt.Fprintf(&b, "Transform this family photo into a %s setting.\n", setting)
		b.WriteString("CRITICAL: Keep the EXACT faces, body shapes, and relative heights of the people.\n")
		fmt.Fprintf(&b, "Only change the background to: %s.\n", theme.Prompt)
		fmt.Fprintf(&b, "Change clothing to: %s.\n", attire)
		b.WriteString("Maintain high fidelity 8k photorealism.")
		return b.String()
	}

	b.WriteString("Create a group family photo using these faces.\n")
	fmt.Fprintf(&b, "Setting: %s.\n", theme.Prompt)
	fmt.Fprintf(&b, "People: Compose these %d people together naturally.\n", photoCount)
	fmt.Fprintf(&b, "Clothing: %s.\n", attire)
	b.WriteString("Style: Photorealistic 8k, warm lighting.")
	return b.String()
}
