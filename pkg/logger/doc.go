// Package logger builds *slog.Logger instances for the paywall service.
//
// New takes functional options for level, format, output and static
// attributes. WithEnvironment applies per-environment defaults and FromConfig
// derives the options from APP_ENV, APP_NAME and LOG_LEVEL. Context
// extractors add request-scoped attributes, such as the request id, at log
// time through LogHandlerDecorator.
//
//	log := logger.New(
//	    logger.WithEnvironment(logger.EnvProduction, "paywall"),
//	    logger.WithContextExtractors(logger.StringExtractor("request_id", requestid.FromContext)),
//	)
//	log.InfoContext(ctx, "purchase settled", logger.ScreenID(id), logger.Error(err))
//
// The attribute helpers in attr.go keep key names consistent. Error and
// Errors return an empty attribute for nil errors.
package logger
