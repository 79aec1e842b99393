// Package config holds the options of a subprobe run and loads them from
// defaults, a YAML file, the environment and the command line.
//
// The environment variables (SINGBOX_PATH, CLASH_API_HOST, CLASH_API_PORT,
// TEST_URL, TEST_TIMEOUT_MS, MAX_CONCURRENCY, SUBSCRIPTIONS_FILE and
// REFRESH_HOURS) keep the names used by existing container deployments.
package config
