package dto

import "fmt"

func BookURL(id uint) string {
	return fmt.Sprintf("%s/books/%d", APIPrefix, id)
}

func RecipeURL(id uint) string {
	return fmt.Sprintf("%s/recipes/%d", APIPrefix, id)
}

// ImageURL is the bearer-authenticated location of a recipe image file.
func ImageURL(recipeID uint, file string) string {
	return fmt.Sprintf("%s/images/%d/%s", APIPrefix, recipeID, file)
}
