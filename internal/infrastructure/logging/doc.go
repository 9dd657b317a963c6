// Package logging wraps uber/zap with the configuration the services
// share: JSON output in production, colored console output in
// development, and a per-service child logger so aggregated logs can be
// split by origin.
//
// Handlers and services receive a *Logger and attach structured fields:
//
//	logger.Info("order created",
//		zap.String("order_id", o.ID),
//		zap.Float64("total", o.Total))
package logging
