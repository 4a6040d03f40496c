package mcpserver

import "github.com/technosupport/physical-mcp/internal/rules"

// RuleTemplate is a pre-built watch-rule shape a user can instantiate
// without writing their own condition text.
type RuleTemplate struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Condition       string
	Priority        rules.Priority
	CooldownSeconds int
	Icon            string
}

// templateCatalog is the built-in rule library, grouped by the same
// five categories the chat-facing rule picker organizes them under.
var templateCatalog = []RuleTemplate{
	{
		ID:              "person-detection",
		Name:            "Person Detected",
		Description:     "Alert whenever a person appears in frame.",
		Category:        "security",
		Condition:       "a person is visible in the frame",
		Priority:        rules.PriorityMedium,
		CooldownSeconds: 60,
		Icon:            "user",
	},
	{
		ID:              "person-at-door",
		Name:            "Person at the Door",
		Description:     "Alert when someone is standing at the front door.",
		Category:        "security",
		Condition:       "a person is standing at or approaching the front door",
		Priority:        rules.PriorityHigh,
		CooldownSeconds: 30,
		Icon:            "door-open",
	},
	{
		ID:              "package-delivered",
		Name:            "Package Delivered",
		Description:     "Alert when a package or delivery box appears on the porch.",
		Category:        "security",
		Condition:       "a package or delivery box has been left on the porch or doorstep",
		Priority:        rules.PriorityMedium,
		CooldownSeconds: 300,
		Icon:            "package",
	},
	{
		ID:              "unusual-activity",
		Name:            "Unusual Activity",
		Description:     "Alert on activity that looks out of place for the time of day.",
		Category:        "security",
		Condition:       "activity is happening that looks unusual or out of place given the time of day",
		Priority:        rules.PriorityHigh,
		CooldownSeconds: 120,
		Icon:            "alert-triangle",
	},
	{
		ID:              "pet-on-furniture",
		Name:            "Pet on Furniture",
		Description:     "Alert when a pet climbs onto furniture it's not supposed to be on.",
		Category:        "pets",
		Condition:       "a cat or dog is on the couch, bed, or other furniture",
		Priority:        rules.PriorityLow,
		CooldownSeconds: 180,
		Icon:            "paw-print",
	},
	{
		ID:              "pet-at-door",
		Name:            "Pet Wants Out",
		Description:     "Alert when a pet is waiting at the door.",
		Category:        "pets",
		Condition:       "a dog or cat is waiting at the door, looking like it wants to go out",
		Priority:        rules.PriorityMedium,
		CooldownSeconds: 120,
		Icon:            "dog",
	},
	{
		ID:              "baby-monitor",
		Name:            "Baby Awake",
		Description:     "Alert when a baby in a crib appears to be awake or moving.",
		Category:        "family",
		Condition:       "a baby in the crib is awake, sitting up, or crying",
		Priority:        rules.PriorityCritical,
		CooldownSeconds: 30,
		Icon:            "baby",
	},
	{
		ID:              "child-safety",
		Name:            "Child Near Hazard",
		Description:     "Alert when a child is near a pool, stairs, or other hazard.",
		Category:        "family",
		Condition:       "a young child is near a pool, staircase, or other hazardous area without a visible adult nearby",
		Priority:        rules.PriorityCritical,
		CooldownSeconds: 30,
		Icon:            "shield-alert",
	},
	{
		ID:              "elderly-fall",
		Name:            "Possible Fall",
		Description:     "Alert when someone appears to have fallen or is lying on the floor unexpectedly.",
		Category:        "family",
		Condition:       "a person appears to have fallen or is lying on the floor in a way that suggests an accident",
		Priority:        rules.PriorityCritical,
		CooldownSeconds: 60,
		Icon:            "heart-pulse",
	},
	{
		ID:              "motion-alert",
		Name:            "Any Motion",
		Description:     "Alert on any detected motion or change in the scene.",
		Category:        "automation",
		Condition:       "anything in the scene has visibly moved or changed since the last check",
		Priority:        rules.PriorityLow,
		CooldownSeconds: 60,
		Icon:            "activity",
	},
	{
		ID:              "lights-left-on",
		Name:            "Lights Left On",
		Description:     "Alert when lights are on in an empty room.",
		Category:        "automation",
		Condition:       "lights are on but no people are visible in the room",
		Priority:        rules.PriorityLow,
		CooldownSeconds: 900,
		Icon:            "lightbulb",
	},
	{
		ID:              "stove-check",
		Name:            "Stove Left On",
		Description:     "Alert when the stove appears to be on with nobody in the kitchen.",
		Category:        "automation",
		Condition:       "the stove or burners appear to be on but no person is present in the kitchen",
		Priority:        rules.PriorityHigh,
		CooldownSeconds: 300,
		Icon:            "flame",
	},
	{
		ID:              "customer-entered",
		Name:            "Customer Entered",
		Description:     "Alert when a customer walks into a storefront or shop area.",
		Category:        "business",
		Condition:       "a customer has just walked into the store",
		Priority:        rules.PriorityMedium,
		CooldownSeconds: 20,
		Icon:            "store",
	},
	{
		ID:              "crowding-alert",
		Name:            "Crowding",
		Description:     "Alert when the number of people in frame exceeds a comfortable threshold.",
		Category:        "business",
		Condition:       "more than five people are visible in the frame at once",
		Priority:        rules.PriorityMedium,
		CooldownSeconds: 300,
		Icon:            "users",
	},
}

func listTemplates(category string) []RuleTemplate {
	if category == "" {
		return templateCatalog
	}
	out := make([]RuleTemplate, 0, len(templateCatalog))
	for _, t := range templateCatalog {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

func getTemplate(id string) (RuleTemplate, bool) {
	for _, t := range templateCatalog {
		if t.ID == id {
			return t, true
		}
	}
	return RuleTemplate{}, false
}

func templateCategories() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range templateCatalog {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}
