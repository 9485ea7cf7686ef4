// Package logger wraps zap for the promoter:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Pipeline stages accept a context and extract the logger from it, so every
// message carries the component name and the package being promoted.
package logger
