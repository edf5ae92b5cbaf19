/*
Package health polls node processes until they are up or gone.

# Checkers

Every checker answers one question per call and reports it as a Result
with a human message:

	TCPChecker     dials host:port; healthy when the connection is accepted
	HTTPChecker    GETs a web console; healthy when Accept(status) holds
	RemoteChecker  runs a command on an instance; healthy when Healthy
	               (exit code, output) holds, by default exit code 0

ProcessPortCheckers builds one TCPChecker per open port of a node process,
labelled with the process name so failures read "CLDB on 10.0.0.5:7222 not
reachable".

HTTPChecker defaults to ConsoleUp, which accepts anything below 400 plus
401 and 403: MapR consoles answer with redirects and authentication
challenges before anyone logs in. Redirects are not followed and
self-signed certificates are accepted.

RemoteChecker.WhenOutputEmpty flips a listing command into a "gone" check,
which is how decommissioning waits for nodes to leave the CLDB:

	checker := health.NewRemoteChecker(r,
		"maprcli node list -filter '[hostname==worker-3]' -columns hostname -noheader").
		WhenOutputEmpty()

# Waiting

WaitFor polls any checker until the required number of consecutive
healthy results is seen or the deadline passes:

	checker := health.NewRemoteChecker(r, "maprcli node cldbmaster")
	if _, err := health.WaitFor(ctx, checker, health.Config{
		Interval:  5 * time.Second,
		Timeout:   10 * time.Minute,
		Successes: 1,
	}); err != nil {
		return err
	}

The first check runs immediately. A deadline miss is reported as a TIMEOUT
coded error that carries the message of the last check; cancelling ctx
returns the context error instead. The returned Status counts checks and
consecutive outcomes either way.

# Port Checks from the CLI

"sahara cluster check ID" runs the port checkers of every node process on
every instance concurrently, and with --web the service consoles too. It
prints one row per check (host, process, healthy, detail) and fails when
any check failed. --wait turns each single check into a WaitFor with that
timeout.
*/
package health
