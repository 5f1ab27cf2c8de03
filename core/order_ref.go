package core

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultOrderPrefix = "TKZ"

// FormatOrderRef renders PREFIX-YEAR-NNNNNN. Sequences wider than six digits
// are rendered in full.
func FormatOrderRef(prefix string, year int, sequence int64) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, sequence)
}

type OrderRefParts struct {
	Prefix   string
	Year     int
	Sequence int64
}

func ParseOrderRef(ref string) (OrderRefParts, error) {
	parts := strings.Split(strings.TrimSpace(ref), "-")
	if len(parts) != 3 || parts[0] == "" {
		return OrderRefParts{}, fmt.Errorf("core: malformed order reference %q", ref)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return OrderRefParts{}, fmt.Errorf("core: malformed order reference year %q", ref)
	}
	if len(parts[2]) < 6 {
		return OrderRefParts{}, fmt.Errorf("core: malformed order reference sequence %q", ref)
	}
	sequence, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || sequence < 0 {
		return OrderRefParts{}, fmt.Errorf("core: malformed order reference sequence %q", ref)
	}
	return OrderRefParts{Prefix: parts[0], Year: year, Sequence: sequence}, nil
}

// SequenceKey scopes the durable counter for a prefix.
func SequenceKey(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	return "order:" + prefix
}
