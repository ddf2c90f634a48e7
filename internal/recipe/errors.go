package recipe

import "errors"

var (
	ErrInvalidRecipe = errors.New("invalid recipe")
	ErrInvalidSource = errors.New("invalid stage source")
)
