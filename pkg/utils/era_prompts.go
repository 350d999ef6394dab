package utils

import (
	"sort"
	"strings"
)

// CustomTheme is stored on results produced from a free-form prompt.
const CustomTheme = "custom"

const defaultTheme = "medieval"

type eraPrompt struct {
	display  string
	primary  string
	fallback string
}

var eraPrompts = map[string]eraPrompt{
	"medieval": {
		display: "Medieval",
		primary: `Transform this person into a medieval knight or noble from the 14th-15th century.
Style: realistic medieval portraiture with authentic period clothing such as chainmail, leather armor or velvet garments with intricate embroidery.
Lighting: candlelit or torch-lit atmosphere in warm golden tones.
Background: stone castle walls or a royal court.
Keep the facial features, add period hairstyles and accessories like crowns, helmets or jewelry.
High-resolution, photorealistic, cinematic composition.`,
		fallback: "Create a realistic photograph of this person dressed as a medieval knight or noble from the 14th century, in authentic period clothing inside a medieval castle. High quality, photorealistic style.",
	},
	"cyberpunk": {
		display: "Cyberpunk",
		primary: `Transform this person into a cyberpunk character from a futuristic dystopian city.
Style: neon-lit cyberpunk aesthetic mixing high technology and urban decay.
Lighting: electric blue, purple and pink neon with hard shadows and glowing elements.
Background: a rainy neon cityscape or a cyberpunk street scene.
Add cybernetic implants, glowing circuits, holographic displays and clothing with LED strips.
High-resolution, cinematic lighting.`,
		fallback: "Create a realistic photograph of this person as a cyberpunk character in a neon-lit futuristic city, wearing high-tech clothing with glowing elements. High quality, cinematic style.",
	},
	"anime": {
		display: "Anime",
		primary: `Transform this person into an anime character in Japanese animation style.
Style: clean lines, vibrant colors and expressive features.
Lighting: soft and even with gentle shadows and bright highlights.
Background: a simple anime backdrop or abstract colorful pattern.
Use large expressive eyes, stylized hair and smooth skin with anime proportions.
High-quality illustration with clean vector-style lines.`,
		fallback: "Create an anime-style illustration of this person with classic Japanese animation features, vibrant colors and expressive anime eyes. High quality, clean art style.",
	},
	"renaissance": {
		display: "Renaissance",
		primary: `Transform this person into a Renaissance noble or artist from 15th-16th century Italy.
Style: classical Renaissance portraiture with rich, detailed clothing.
Lighting: soft natural light as in classical oil paintings.
Background: Renaissance architecture, classical columns or an elegant interior.
Keep the facial features, add period hairstyles, fabrics and jewelry.
Museum-quality, high-resolution portrait.`,
		fallback: "Create a realistic photograph of this person dressed as a Renaissance noble in classical period clothing, standing in elegant Renaissance architecture. High quality, classical style.",
	},
	"vintage": {
		display: "Vintage",
		primary: `Transform this person into a character from the 1920s-1950s.
Style: classic vintage photography in sepia, black-and-white or a vibrant 1950s palette.
Lighting: soft, flattering studio light.
Background: Art Deco interiors, vintage cars or classic Americana.
Use period clothing, hairstyles and accessories with authentic film grain.
High-resolution vintage aesthetic.`,
		fallback: "Create a realistic vintage photograph of this person from the 1920s-1950s, wearing period-appropriate clothing with authentic vintage styling. High quality, classic style.",
	},
	"1920s": {
		display: "1920s",
		primary:  "Transform this person into a 1920s character, flapper or gentleman style, vintage clothing, high quality, detailed facial features preserved.",
		fallback: "Create a realistic black-and-white photograph of this person in 1920s fashion, flapper or gentleman style. High quality, classic style.",
	},
	"futuristic": {
		display: "Futuristic",
		primary: `Transform this person into a character from a high-tech utopian society.
Style: clean, minimalist futuristic design with sleek technology.
Lighting: bright and clean with subtle blue or white glows.
Background: a futuristic skyline, space station or advanced laboratory.
Add subtle tech enhancements and clothing with clean lines.
High-resolution sci-fi aesthetic.`,
		fallback: "Create a realistic photograph of this person in futuristic clothing and setting, with clean modern design and advanced technology. High quality, sci-fi style.",
	},
	"space": {
		display: "Space",
		primary: `Transform this person into a space explorer in a futuristic space setting.
Style: sci-fi aesthetic with advanced space technology and cosmic elements.
Lighting: dramatic starlight, nebulas and spacecraft lighting.
Background: a space station, an alien planet or deep space.
Add space suit elements, a helmet and exploration equipment.
High-resolution cinematic space photography.`,
		fallback: "Create a realistic photograph of this person as a space explorer, wearing advanced space equipment in a futuristic space setting. High quality, sci-fi style.",
	},
	"steampunk": {
		display: "Steampunk",
		primary: `Transform this person into a steampunk character from a Victorian alternate history.
Style: brass, copper and leather combined with steam-powered machinery.
Lighting: warm golden light with steam and deep shadows.
Background: a Victorian workshop, an airship or a steampunk city.
Add brass goggles, mechanical parts, gadgets and modified Victorian clothing.
High-resolution detailed steampunk art.`,
		fallback: "Create a realistic photograph of this person in steampunk attire with brass, copper and leather elements, standing in a Victorian workshop. High quality, steampunk style.",
	},
}

// NormalizeTheme lowercases a theme and maps unknown values to the default era.
func NormalizeTheme(theme string) string {
	t := strings.ToLower(strings.TrimSpace(theme))
	if _, ok := eraPrompts[t]; ok {
		return t
	}
	return defaultTheme
}

// EraPrompt returns the primary prompt for theme. Unknown themes use medieval.
func EraPrompt(theme string) string {
	return eraPrompts[NormalizeTheme(theme)].primary
}

// FallbackPrompt returns the simplified prompt tried after a refusal.
func FallbackPrompt(theme string) string {
	return eraPrompts[NormalizeTheme(theme)].fallback
}

type ThemeInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

func AvailableThemes() []ThemeInfo {
	out := make([]ThemeInfo, 0, len(eraPrompts))
	for k, p := range eraPrompts {
		out = append(out, ThemeInfo{Key: k, DisplayName: p.display})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
