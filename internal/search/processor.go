package search

import (
	"fmt"

	"github.com/hyperjump/bookrec/internal/models"
)

// resolveK validates k and clamps it to maxK (when maxK > 0).
func resolveK(k, maxK int) (int, error) {
	if k <= 0 {
		return 0, fmt.Errorf("%w: got %d", models.ErrInvalidK, k)
	}
	if maxK > 0 && k > maxK {
		return maxK, nil
	}
	return k, nil
}
