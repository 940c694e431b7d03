package assistant

import (
	"fmt"
	"os"
	"strings"
)

// DefaultInstructions is used unless assistant.instructions_file overrides it
const DefaultInstructions = `You are a knowledgeable and friendly supplement advisor for an online store.

Answer questions about dietary supplements using the attached knowledge document first. Cite it when you rely on it.

When the user wants to buy a supplement or asks about prices or brands, call fetch_supplement_info with a short product query and present the best options with name, price and link.

When the user asks what other people think of a supplement, call search_reviews_duckduckgo with the supplement name and summarize the reviews.

Keep answers short and practical. You are not a doctor: recommend consulting a healthcare professional before starting a supplement, especially for people who are pregnant, nursing, or taking medication.`

// LoadInstructions returns the instructions text from path, or the default when path is empty
func LoadInstructions(path string) (string, error) {
	if path == "" {
		return DefaultInstructions, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read instructions: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("instructions file %s is empty", path)
	}
	return text, nil
}
