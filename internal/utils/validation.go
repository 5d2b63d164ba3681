package utils

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// ErrInvalidJSON wraps every DecodeJSON failure
var ErrInvalidJSON = errors.New("invalid JSON")

// JSONLimits bounds an untrusted JSON document
type JSONLimits struct {
	MaxSize  int // bytes
	MaxDepth int // nested objects/arrays below the root
}

var (
	// RequestLimits applies to ordinary request bodies
	RequestLimits = JSONLimits{MaxSize: 1 << 20, MaxDepth: 32}

	// BroadcastLimits applies to payloads fanned out to every environment
	BroadcastLimits = JSONLimits{MaxSize: 256 << 10, MaxDepth: 32}
)

// DecodeJSON checks data against limits and returns the decoded value
func DecodeJSON(data []byte, limits JSONLimits) (interface{}, error) {
	if limits.MaxSize > 0 && len(data) > limits.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrInvalidJSON, len(data), limits.MaxSize)
	}

	var value interface{}
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if limits.MaxDepth > 0 {
		if depth := Depth(value); depth > limits.MaxDepth {
			return nil, fmt.Errorf("%w: nesting depth %d exceeds maximum %d", ErrInvalidJSON, depth, limits.MaxDepth)
		}
	}
	return value, nil
}

// Depth returns how deeply objects and arrays nest below value. Scalars and
// empty containers have depth 0.
func Depth(value interface{}) int {
	type frame struct {
		value interface{}
		depth int
	}

	deepest := 0
	stack := []frame{{value: value}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := top.value.(type) {
		case map[string]interface{}:
			for _, child := range v {
				stack = append(stack, frame{value: child, depth: top.depth + 1})
			}
		case []interface{}:
			for _, child := range v {
				stack = append(stack, frame{value: child, depth: top.depth + 1})
			}
		}
		if top.depth > deepest {
			deepest = top.depth
		}
	}
	return deepest
}

// ValidateID checks that id is a UUID
func ValidateID(id, field string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s must be a UUID", field)
	}
	return nil
}
