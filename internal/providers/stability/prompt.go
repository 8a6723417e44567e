package stability

import "strings"

const basePrompt = `Generate a high-quality, photorealistic image of a beautiful dog wearing cozy, premium apparel from Good Natured Brand (GNB). The apparel should be:

Made from natural, sustainable materials in earth tones (forest green, warm beige, natural brown)

Feature only the simple "GNB" text as branding on the apparel (e.g., on the chest of a sweater or jacket)

Look comfortable, well-fitted, and stylish on the dog

Include cozy items like a knit sweater, cotton bandana, or natural-fabric jacket

The dog should be:

Happy and playful, with bright, alert eyes

In a natural, relaxed pose

Well-groomed and healthy-looking

Setting:

Clean, modern home environment with soft, natural lighting

Neutral background that doesn't distract from the dog

Professional pet photography style with warm, inviting atmosphere

High-resolution, photorealistic image with excellent lighting and composition`

// BuildPrompt composes the fixed apparel template with an optional
// description of the uploaded dog.
func BuildPrompt(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return basePrompt
	}
	return basePrompt + "\n\nDog details: " + description
}
