// Package config provides configuration loading and validation for the regolo API client.
// It reads an optional YAML file, expands environment references, loads .env files and
// applies the ENDPOINT, REGOLO_TOKEN and REGOLOAI_API_KEY overrides.
package config
