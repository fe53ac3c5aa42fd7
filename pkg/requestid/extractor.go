package requestid

import "github.com/dmitrymomot/paywall/pkg/logger"

// LoggerExtractor adds "request_id" to every record logged with a request
// context.
func LoggerExtractor() logger.ContextExtractor {
	return logger.StringExtractor("request_id", FromContext)
}
