package image

import (
	"fmt"
	"strings"

	"studio/internal/domain"
)

// DefaultNegativePrompt captures undesirable artefacts we want the model to avoid.
const DefaultNegativePrompt = "low quality, blurry, distorted, washed out, extra limbs, garbled text, watermark"

// categoryScenes gives each business type a concrete visual setting.
var categoryScenes = map[domain.CategoryKind]string{
	domain.CategoryTeaStall:   "a roadside chai stall with steaming kettles and clay cups",
	domain.CategoryStreetFood: "a busy street food cart with fresh snacks under warm lights",
	domain.CategoryKirana:     "a neatly stocked neighbourhood kirana shop counter",
	domain.CategoryBakery:     "a bakery display with fresh breads and cakes",
	domain.CategoryRestaurant: "a welcoming family restaurant table with plated dishes",
	domain.CategoryTailor:     "a tailoring workbench with fabric rolls and a sewing machine",
	domain.CategorySalon:      "a clean, bright beauty salon interior",
	domain.CategoryMobileShop: "a mobile repair counter with tools and phones",
	domain.CategoryHandicraft: "handmade crafts arranged on a textured cloth",
}

// BuildMarketingPrompt converts the caption and category into a natural
// language instruction for text-to-image models.
func BuildMarketingPrompt(caption string, category domain.Category) string {
	var lines []string

	scene, ok := categoryScenes[category.Kind]
	if !ok {
		scene = fmt.Sprintf("a small local business: %s", category.Label())
	}
	lines = append(lines, fmt.Sprintf("Create a square marketing photograph of %s in India.", scene))

	if c := strings.TrimSpace(caption); c != "" {
		lines = append(lines, fmt.Sprintf("The image accompanies this social media caption: %q.", domain.Snippet(c)))
	}
	lines = append(lines,
		"Do not render any text, letters or logos in the image.",
		"Use natural light, sharp focus and warm, inviting colours.",
		"Ensure the scene looks authentic, well-lit, and ready for social media promotion.",
	)
	return strings.Join(lines, "\n")
}
