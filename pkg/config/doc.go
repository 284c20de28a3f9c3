// Package config loads the handoff configuration.
//
// Values are resolved, highest precedence first, from command-line flags,
// environment variables, an optional YAML config file and built-in
// defaults. Every key can be set as HANDOFF_<SECTION>_<KEY>; the
// connection settings also accept the REDIS_CONNECT_*, JOB_* and
// ORACLE_* variables used by existing deployments. A .env file is loaded
// first without overriding variables already set.
package config
