// Package logx is a small structured-logging facade over zerolog.
//
// Components receive a logx.Logger value; the zero value is a safe no-op.
// The Service owns the configured sinks (console, file) and can re-apply
// logging config at runtime without invalidating existing Logger values.
package logx
