package domain

import units "github.com/docker/go-units"

// HumanSize renders a byte count for terminal and API display ("1.24 GB").
func HumanSize(v int64) string {
	return units.HumanSize(float64(v))
}

// ParseSize parses a human byte string ("4GB", "512mb") into bytes.
func ParseSize(s string) (int64, error) {
	return units.FromHumanSize(s)
}
