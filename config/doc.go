// Package config loads the application configuration: free-form app
// settings, named connection strings and the database section, read from
// YAML and then overridden from the environment.
package config
