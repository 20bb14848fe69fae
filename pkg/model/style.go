package model

import "strings"

// Style selects the narration genre. Unknown values narrate in the
// default immersive style.
type Style string

const (
	StyleImmersive            Style = "IMMERSIVE"
	StyleNoir                 Style = "NOIR"
	StyleChildren             Style = "CHILDREN"
	StyleHistorical           Style = "HISTORICAL"
	StyleFantasy              Style = "FANTASY"
	StyleHistorianGuide       Style = "HISTORIAN_GUIDE"
	StyleHorror               Style = "HORROR"
	StyleMystery              Style = "MYSTERY"
	StyleHistoricalFiction    Style = "HISTORICAL_FICTION"
	StyleScienceFiction       Style = "SCIENCE_FICTION"
	StyleNoirEpic             Style = "NOIR_EPIC"
	StyleWalkingTourAdventure Style = "WALKINGTOUR_ADVENTURE"
)

const historianGuide = "Style: The Historian Guide. Clear, authoritative, engaging but grounded in fact. " +
	"Purpose: Provide historically accurate, contextual information about the route and key locations encountered along the journey. " +
	"Voice Characteristics: Confident and knowledgeable; engaging without being theatrical; speaks like a skilled local historian or academic guide. " +
	"Content Focus: Verified historical events tied to specific locations on the route, dates, names, and cultural context. Explain how the place has changed and why landmarks matter. " +
	"Accuracy Requirements: All information MUST be accurate and conservative. If uncertain, acknowledge it. DO NOT invent events, people, or interpretations. " +
	"Constraints: Do not fictionalize. Avoid modern opinions or political framing."

var styleInstructions = map[Style]string{
	StyleImmersive: "Style: Immersive, 'in the moment' narration. Focus on the sensation of movement and the immediate environment.",
	StyleNoir: "Style: Noir Thriller. Gritty, cynical, atmospheric. Use inner monologue. The traveler is a detective or someone with a troubled past. " +
		"The city is a character itself, dark, rainy, hiding secrets. Use metaphors of shadows, smoke, and cold neon.",
	StyleChildren: "Style: Children's Story. Whimsical, magical, full of wonder and gentle humor. The world is bright and alive; maybe inanimate objects " +
		"(like traffic lights or trees) have slight personalities. Simple but evocative language. A sense of delightful discovery.",
	StyleHistorical: "Style: Historical Epic. Grandiose, dramatic, and timeless. Treat the journey as a significant pilgrimage or quest in a bygone era " +
		"(even though it's modern day, overlay it with historical grandeur). Use slightly archaic but understandable language. Focus on endurance, destiny, and the weight of history.",
	StyleFantasy: "Style: Fantasy Adventure. Heroic, mystical, and epic. The real world is just a veil over a magical realm. Streets are ancient paths, " +
		"buildings are towers or ruins. The traveler is on a vital quest. Use metaphors of magic, mythical creatures (shadows might be lurking beasts), and destiny.",
	StyleHistorianGuide: historianGuide,
	StyleHorror: "ROLE: The Unreliable Narrator.\nGENRE: Psychological Horror / The Uncanny.\nVOICE: Intimate, unsettling, soft, and dangerously calm.\n" +
		"INSTRUCTION: You are narrating a nightmare that feels real. The ordinary world is 'wrong.' Describe the environment using disturbing sensory details: " +
		"the hum of electricity, the smell of ozone, the feeling of being watched from empty windows.\n" +
		"CONSTRAINTS: Use short, severed sentences. Avoid gore; focus on dread. Build tension through silence and odd details. End thoughts with a chilling finality.",
	StyleMystery: "Style: Mystery detective narration. Calm, precise, observant. Medium pacing with thoughtful pauses. First-person or close third-person. " +
		"Treat every detail as a clue: timings, odd behaviours, out-of-place objects, overheard fragments. Use clean, logical language with occasional dry wit. " +
		"Keep tension through questions and deductions, not action. Reveal insights gradually. Maintain a confident, investigative tone.",
	StyleHistoricalFiction: "ROLE: The Ghost of the Past.\nGENRE: Immersive Historical Fiction.\nVOICE: Warm, vivid, slightly archaic but accessible.\n" +
		"INSTRUCTION: Treat the present day as a thin veil over the past. Describe the location as it *was*. Focus on human sensory details: " +
		"the scratch of wool, the smell of coal smoke, the clatter of hooves. Connect the geography to specific human emotions and daily struggles of the era.\n" +
		"CONSTRAINTS: Emotional truth over dry facts. Make the listener feel the weight of time.",
	StyleScienceFiction: "ROLE: The Glitching Interface.\nGENRE: Cyberpunk / Dystopian Near-Future.\nVOICE: Cool, synthetic, analytical, occasionally corrupted.\n" +
		"INSTRUCTION: Describe the city as a data stream. You see the world through augmented reality: heat signatures, facial recognition tags, and surveillance blind spots. " +
		"The tension comes from 'system errors': reality isn't rendering correctly.\n" +
		"CONSTRAINTS: Use technical metaphors (bandwidth, latency, corruption). Maintain a detached tone until the 'signal' begins to fail, then introduce urgency.",
	StyleNoirEpic: "Style: Noir thriller narration. Low-pitched, husky, gravel-edged, world-weary. Slow to medium-slow pacing with deliberate pauses and space between lines. " +
		"Tone is cynical, restrained, and dangerously calm, with controlled bitterness and quiet menace. This is first-person inner monologue from a detective or traveller with a troubled past. " +
		"The city is alive, watching, judging, hiding secrets. Use sharp, blunt language and hard metaphors: rain, smoke, shadows, neon, wet asphalt, flickering lights. " +
		"Keep sentences short and punchy. No warmth, no enthusiasm, no theatrical delivery. End sentences flat or downward. Speak as if every word costs something.",
	StyleWalkingTourAdventure: historianGuide,
}

var styleNames = map[Style]string{
	StyleImmersive:            "Immersive",
	StyleNoir:                 "Noir Thriller",
	StyleChildren:             "Children's Story",
	StyleHistorical:           "Historical Epic",
	StyleFantasy:              "Fantasy Adventure",
	StyleHistorianGuide:       "Historian Guide",
	StyleHorror:               "Horror Narration",
	StyleMystery:              "Mystery Detective",
	StyleHistoricalFiction:    "Historical Fiction",
	StyleScienceFiction:       "Science Fiction",
	StyleNoirEpic:             "Noir Adventure",
	StyleWalkingTourAdventure: "Walking Tour",
}

// ParseStyle normalizes s to a known style, defaulting to StyleImmersive.
func ParseStyle(s string) Style {
	st := Style(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := styleInstructions[st]; ok {
		return st
	}
	return StyleImmersive
}

// Instruction returns the fixed prompt instruction for the style.
func (s Style) Instruction() string {
	if in, ok := styleInstructions[s]; ok {
		return in
	}
	return styleInstructions[StyleImmersive]
}

// DisplayName returns a human label for the style.
func (s Style) DisplayName() string {
	if n, ok := styleNames[s]; ok {
		return n
	}
	return styleNames[StyleImmersive]
}

// Styles lists every known style in a stable order.
func Styles() []Style {
	return []Style{
		StyleImmersive, StyleNoir, StyleChildren, StyleHistorical, StyleFantasy,
		StyleHistorianGuide, StyleHorror, StyleMystery, StyleHistoricalFiction,
		StyleScienceFiction, StyleNoirEpic, StyleWalkingTourAdventure,
	}
}
