package service

import (
	"time"
)

// defaultExpiresIn applies when the token endpoint omits expires_in.
const defaultExpiresIn = 7200

// StatusSkipped marks work that was intentionally not attempted.
const StatusSkipped = "skipped"

func GetExpiresAt(from time.Time, expiresIn int) time.Time {
	return from.Add(time.Duration(expiresIn) * time.Second)
}

// compareTweetIDs orders X snowflake ids numerically without parsing them.
func compareTweetIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func groupByUser[T any](items []T, userOf func(T) string) (map[string][]T, []string) {
	groups := make(map[string][]T)
	var order []string
	for _, item := range items {
		u := userOf(item)
		if _, ok := groups[u]; !ok {
			order = append(order, u)
		}
		groups[u] = append(groups[u], item)
	}
	return groups, order
}
