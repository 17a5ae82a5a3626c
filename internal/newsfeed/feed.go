// Package newsfeed serves the curated industry feed: tech events, regulatory
// updates, and product news. The feed is static editorial content shipped
// with the server; a news API integration would replace these lists.
package newsfeed

// TechEvent is one industry development.
type TechEvent struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	EventType   string `json:"event_type"`
}

// RegulatoryUpdate is one policy or compliance development.
type RegulatoryUpdate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Date        string `json:"date"`
	ImpactLevel string `json:"impact_level"`
}

// ProductNews is one product announcement.
type ProductNews struct {
	Company     string `json:"company"`
	ProductName string `json:"product_name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Category    string `json:"category"`
}

// TechEvents returns the curated event list.
func TechEvents() []TechEvent {
	return []TechEvent{
		{
			Company:     "OpenAI",
			Title:       "GPT-5 Development Announcement",
			Description: "OpenAI announces development progress on GPT-5 with improved reasoning capabilities.",
			Date:        "2024-03-21",
			EventType:   "Research",
		},
		{
			Company:     "NVIDIA",
			Title:       "Blackwell Platform Launch",
			Description: "NVIDIA unveils its next-generation GPU architecture for large-scale AI training.",
			Date:        "2024-03-18",
			EventType:   "Hardware",
		},
	}
}

// RegulatoryUpdates returns the curated regulatory list.
func RegulatoryUpdates() []RegulatoryUpdate {
	return []RegulatoryUpdate{
		{
			Title:       "EU AI Act Implementation",
			Description: "New guidelines for AI system deployment in the European Union.",
			Region:      "EU",
			Date:        "2024-03-20",
			ImpactLevel: "High",
		},
		{
			Title:       "US Executive Order on AI Safety",
			Description: "Federal agencies publish reporting requirements for frontier model training runs.",
			Region:      "US",
			Date:        "2024-03-12",
			ImpactLevel: "Medium",
		},
	}
}

// ProductUpdates returns the curated product-news list.
func ProductUpdates() []ProductNews {
	return []ProductNews{
		{
			Company:     "Microsoft",
			ProductName: "Azure AI",
			Title:       "New Azure AI Features Released",
			Description: "Microsoft adds new computer vision capabilities to Azure AI services.",
			Date:        "2024-03-19",
			Category:    "AI",
		},
		{
			Company:     "Google",
			ProductName: "Gemini",
			Title:       "Gemini Context Window Expansion",
			Description: "Google extends Gemini's context window for long-document workloads.",
			Date:        "2024-03-15",
			Category:    "AI",
		},
	}
}
