// Package engine drives the external proxy engine (sing-box) used to test
// nodes.
//
// BuildConfig turns a node list into the engine's JSON configuration and
// assigns each node a unique outbound identifier. Process owns one engine
// subprocess: Start writes the configuration to a temporary directory,
// launches "<engine> run -c config.json" and waits for the clash control
// API; Stop terminates the process and removes the directory. Client
// issues readiness and delay requests against the control API.
package engine
