//go:build !race

package warehouse

func passwordHashCost() int {
	return 12
}
