package ai

import "animeavatar/pkg/domain"

var stylePrompts = map[domain.Style]string{
	domain.StyleModern:    "Transform this photo into a modern anime art style with vibrant colors, detailed shading, and expressive features like those seen in recent popular anime series.",
	domain.StyleChibi:     "Transform this photo into a chibi anime style with an adorable oversized head, tiny body, large sparkly eyes, and cute exaggerated expressions.",
	domain.StyleGhibli:    "Transform this photo into a Studio Ghibli inspired art style with soft colors, gentle lighting, hand-painted textures, and a whimsical dreamlike quality.",
	domain.StyleCyberpunk: "Transform this photo into a cyberpunk anime style with neon accents, futuristic elements, tech accessories, holographic effects, and a dark urban aesthetic.",
}

const promptSuffix = "\nKeep the person's distinctive features like face shape, hairstyle, and overall appearance recognizable.\nMake it suitable as a profile avatar with a clean background.\nThe result should be a beautiful, high-quality anime character portrait that captures the essence of the original person."

// PromptFor returns the fixed prompt template for a style. Unknown
// styles fall back to the modern template.
func PromptFor(style domain.Style) string {
	prompt, ok := stylePrompts[style]
	if !ok {
		prompt = stylePrompts[domain.StyleModern]
	}
	return prompt + promptSuffix
}
