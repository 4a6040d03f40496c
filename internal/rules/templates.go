package rules

// Template is a pre-built rule preset so users can pick from a menu
// instead of writing a natural-language condition from scratch.
type Template struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Condition       string
	Priority        Priority
	CooldownSeconds int
	Icon            string
}

// Templates is a representative catalog spanning the reference
// implementation's security, household and activity categories.
var Templates = []Template{
	{
		ID:              "person-detection",
		Name:            "Person Detection",
		Description:     "Alert when any person appears in the camera view",
		Category:        "security",
		Condition:       "A person or human figure is visible in the camera frame",
		Priority:        PriorityHigh,
		CooldownSeconds: 60,
		Icon:            "🚶",
	},
	{
		ID:              "person-at-door",
		Name:            "Person at Door",
		Description:     "Alert when someone approaches or stands at a door",
		Category:        "security",
		Condition:       "A person is standing at, approaching, or knocking on a door",
		Priority:        PriorityHigh,
		CooldownSeconds: 60,
		Icon:            "🚪",
	},
	{
		ID:              "package-delivered",
		Name:            "Package Delivered",
		Description:     "Alert when a package or delivery is left at the door",
		Category:        "security",
		Condition:       "A package, box, or delivery parcel has been placed near the door or on the ground",
		Priority:        PriorityMedium,
		CooldownSeconds: 300,
		Icon:            "📦",
	},
	{
		ID:              "pet-on-furniture",
		Name:            "Pet on Furniture",
		Description:     "Alert when a pet climbs on furniture it shouldn't",
		Category:        "household",
		Condition:       "A cat or dog is on the couch, bed, or counter",
		Priority:        PriorityLow,
		CooldownSeconds: 600,
		Icon:            "🐾",
	},
	{
		ID:              "stove-left-on",
		Name:            "Stove Possibly Left On",
		Description:     "Alert if the stove area looks active with nobody present",
		Category:        "safety",
		Condition:       "The stove appears to be on (flame or glowing element visible) and no person is in the kitchen",
		Priority:        PriorityCritical,
		CooldownSeconds: 120,
		Icon:            "🔥",
	},
	{
		ID:              "child-near-pool",
		Name:            "Child Near Pool",
		Description:     "Alert when a child approaches a pool unaccompanied",
		Category:        "safety",
		Condition:       "A child is near or entering pool water without a visible adult nearby",
		Priority:        PriorityCritical,
		CooldownSeconds: 60,
		Icon:            "🏊",
	},
	{
		ID:              "drinking-detected",
		Name:            "Drinking Detected",
		Description:     "Alert when someone is actively drinking from a cup or bottle",
		Category:        "activity",
		Condition:       "A person is actively raising a cup, glass, or bottle to their mouth and drinking",
		Priority:        PriorityLow,
		CooldownSeconds: 300,
		Icon:            "🥤",
	},
	{
		ID:              "waving-gesture",
		Name:            "Waving Gesture",
		Description:     "Alert when someone waves at the camera",
		Category:        "activity",
		Condition:       "A person is waving their hand or arm at the camera",
		Priority:        PriorityMedium,
		CooldownSeconds: 30,
		Icon:            "👋",
	},
	{
		ID:              "unusual-activity",
		Name:            "Unusual Activity",
		Description:     "Alert on any activity that deviates from the normal calm scene",
		Category:        "security",
		Condition:       "Something unusual or out of place is happening compared to a typical calm scene",
		Priority:        PriorityMedium,
		CooldownSeconds: 180,
		Icon:            "⚠️",
	},
}

// FindTemplate looks up a template by ID.
func FindTemplate(id string) (Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// ToWatchRule instantiates a WatchRule from the template with a
// caller-supplied ID and optional camera scoping.
func (t Template) ToWatchRule(ruleID, cameraID string) WatchRule {
	r := NewWatchRule(ruleID, t.Name, t.Condition)
	r.CameraID = cameraID
	r.Priority = t.Priority
	r.CooldownSeconds = t.CooldownSeconds
	return r
}
