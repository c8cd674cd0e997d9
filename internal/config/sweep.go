package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFractions parses sample fractions from config entries.
// Each entry may itself be a comma-separated list ("0.01,0.5"), which is how
// list values arrive from environment variables and flags.
// Every fraction must satisfy 0 < f <= 1; order is preserved and duplicates
// are kept because each one is a distinct sweep step.
func ParseFractions(entries []string) ([]float64, error) {
	var out []float64
	for _, raw := range splitEntries(entries) {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fraction %q: %w", raw, err)
		}
		if !(f > 0 && f <= 1) {
			return nil, fmt.Errorf("fraction %v out of range (0, 1]", f)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fractions given")
	}
	return out, nil
}

// ParseParallelism parses parallelism levels from config entries
func ParseParallelism(entries []string) ([]int, error) {
	var out []int
	for _, raw := range splitEntries(entries) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid parallelism %q: %w", raw, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("parallelism must be at least 1, got %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parallelism levels given")
	}
	return out, nil
}

func splitEntries(entries []string) []string {
	var parts []string
	for _, entry := range entries {
		for _, p := range strings.Split(entry, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

func formatFractions(fs []float64) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return out
}

func formatParallelism(ns []int) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = strconv.Itoa(n)
	}
	return out
}
