/*
Package config defines the cvld server configuration.

Configuration comes from CLI flags with an optional YAML file overlay
(--config). Validation happens once at startup; the only fatal
misconfiguration is TLS enabled without a certificate/key pair on disk.
*/
package config
