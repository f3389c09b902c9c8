/*
Package log provides structured logging for hutch using zerolog.

The log package wraps zerolog to give every component JSON-structured
logging with context-specific child loggers, a configurable level, and
a handful of helpers for the common cases so call sites don't repeat
field names.

# Usage

Initializing the logger:

	import "github.com/nestlab/hutch/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("repository index rebuilt")
	log.Warn("cache entry expired mid-transaction")
	log.Error("driver fetch failed")
	log.Fatal("cannot open storage base directory")

Structured logging:

	log.Logger.Info().
		Str("repository", "owner/repo").
		Int("packages", 12).
		Msg("repository added")

Context loggers attach a field to every subsequent log call so callers
don't have to repeat it:

	repoLog := log.WithRepository("repository", "owner/repo", "github")
	repoLog.Info().Msg("fetch started")
	repoLog.Error().Err(err).Msg("fetch failed")

	pkgLog := log.WithPackage("pkgindex", "curl", "owner/repo")
	pkgLog.Info().Msg("download complete")

	txLog := log.WithTransaction("repository", txID, false)
	txLog.Info().Int("actions", n).Msg("apply pass starting")

# Design

A single package-level Logger is initialized once via Init and used
from every package without being threaded through call signatures —
the same global-logger convention as the rest of the ambient stack.
Context loggers (WithRepository, WithPackage, WithTransaction) are
cheap child loggers created per call site, not stored in long-lived
state, so nothing here needs explicit teardown.

JSONOutput controls whether logs are newline-delimited JSON (suitable
for piping to a log aggregator) or a colorized console format
(suitable for a terminal); both carry the same fields.
*/
package log
