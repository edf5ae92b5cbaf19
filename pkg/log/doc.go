/*
Package log provides structured logging for Sahara using zerolog.

Init configures the global Logger once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stderr,
	})

Components take a child logger carrying their context and log through it:

	logger := log.WithComponent("reconciler")
	logger.Info().Str("cluster_id", id).Msg("Cluster is active")

The helpers return zerolog.Logger values, whose level methods have pointer
receivers, so assign the child logger before logging through it:

	clusterLog := log.WithClusterID(id)
	clusterLog.Warn().Err(err).Msg("Failed to stop services")

	instanceLog := log.WithInstanceID(inst.ID)
	instanceLog.Debug().Str("cmd", cmd).Msg("Running")

JSONOutput selects one JSON object per line; otherwise a console writer
with RFC 3339 timestamps is used. Unknown levels fall back to info.

Messages are capitalised and state what happened. Errors are attached
with Err rather than formatted into the message.
*/
package log
