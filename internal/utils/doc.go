// Package utils provides request validation shared by the HTTP handlers.
//
// Validation:
//   - JSON size and nesting limits for request bodies and broadcast payloads
//   - UUID checks for view ids
//
// Example Usage:
//
//	payload, err := utils.DecodeJSON(body, utils.BroadcastLimits)
//	if errors.Is(err, utils.ErrInvalidJSON) {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	}
package utils
