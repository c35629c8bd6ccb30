// Package logger's JSONLogger is the only core.Logger implementation in
// this module that writes anywhere; everything else (tests, the
// Controller's default wiring) takes core.NoOpLogger or a JSONLogger
// injected via core.WithLogger.
package logger
